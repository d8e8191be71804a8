package airgap

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// ImportKey reads the single-line WIF private key from the externally mounted
// credential path. The key text is never logged.
func ImportKey(path string) (string, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read key file")
	}

	key := strings.TrimSpace(string(b))
	if len(key) == 0 {
		return "", errors.New("empty key file")
	}

	return key, nil
}

package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadTermsFile reads an alarm-term list from a YAML file. The file holds
// either a bare sequence of terms or a mapping with a top-level `terms` key.
func LoadTermsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read terms file %s", path)
	}

	var terms []string
	if err := yaml.Unmarshal(data, &terms); err == nil {
		return terms, nil
	}

	var doc struct {
		Terms []string `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "classify: parse terms file %s", path)
	}
	if len(doc.Terms) == 0 {
		return nil, eris.Errorf("classify: terms file %s contains no terms", path)
	}
	return doc.Terms, nil
}

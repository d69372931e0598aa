package scoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of a rule override file.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule table from path and compiles it. The file
// replaces the built-in pattern table wholesale; structural checks (short
// description, implausible budget) always apply.
//
//	rules:
//	  - name: upfront_payment
//	    pattern: "оплата вперед"
//	    weight: 35
//	    polarity: risk
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read rules file %s", path)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "scoring: parse rules file %s", path)
	}
	if len(f.Rules) == 0 {
		return nil, eris.Errorf("scoring: rules file %s contains no rules", path)
	}

	return NewRuleSet(f.Rules), nil
}

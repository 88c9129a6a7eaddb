package corectl

import "gopkg.in/yaml.v3"

type controllerFields struct {
	ExternalController string `yaml:"external-controller"`
	Secret             string `yaml:"secret"`
}

// ParseExternalController reads the external-controller address and
// secret out of a profile's YAML body.
// ok is false when the profile has no external-controller configured.
func ParseExternalController(profileYAML string) (addr, secret string, ok bool) {
	var fields controllerFields
	if err := yaml.Unmarshal([]byte(profileYAML), &fields); err != nil {
		return "", "", false
	}
	if fields.ExternalController == "" {
		return "", "", false
	}
	return fields.ExternalController, fields.Secret, true
}

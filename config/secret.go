package config

import "gopkg.in/yaml.v3"

// SecretString is a config value that must not appear in logs, such as a
// store DSN with a password in it. Mark it in YAML with the !secret tag:
//
//	store:
//	  dsn: !secret postgres://wml:${DB_PASSWORD}@db/wml
type SecretString struct {
	value    string
	isSecret bool
}

// NewSecretString returns a hidden value.
func NewSecretString(value string) SecretString {
	return SecretString{value: value, isSecret: true}
}

func (s SecretString) Value() string  { return s.value }
func (s SecretString) IsSecret() bool { return s.isSecret }

// String is safe to log.
func (s SecretString) String() string {
	if !s.isSecret || s.value == "" {
		return s.value
	}
	return "[hidden]"
}

func (s *SecretString) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}
	*s = SecretString{value: value, isSecret: node.Tag == "!secret"}
	return nil
}

func (s SecretString) MarshalYAML() (any, error) {
	if !s.isSecret {
		return s.value, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!secret", Value: s.value}, nil
}

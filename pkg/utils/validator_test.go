package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		check   func(string) error
		value   string
		wantErr bool
	}{
		{"governor performance", ValidateGovernor, "performance", false},
		{"governor unknown", ValidateGovernor, "turbo", true},
		{"cpus all", ValidateCPUList, "all", false},
		{"cpus range", ValidateCPUList, "0-3", false},
		{"cpus mixed", ValidateCPUList, "0,2,4-7", false},
		{"cpus injection", ValidateCPUList, "0; rm -rf /", true},
		{"frequency unit", ValidateFrequency, "2.4GHz", false},
		{"frequency bare", ValidateFrequency, "2400000", false},
		{"frequency junk", ValidateFrequency, "fast", true},
		{"node name", ValidateNodeName, "node-1", false},
		{"node name fqdn", ValidateNodeName, "node1.cluster", false},
		{"node name empty", ValidateNodeName, "", true},
		{"node name dash", ValidateNodeName, "-node", true},
		{"node name shell", ValidateNodeName, "node$1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	cpuList   = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)
	frequency = regexp.MustCompile(`^\d+(\.\d+)?([kKmMgG][hH][zZ])?$`)
)

// Governors understood by cpupower frequency-set -g.
var governors = map[string]bool{
	"performance":  true,
	"powersave":    true,
	"userspace":    true,
	"ondemand":     true,
	"conservative": true,
	"schedutil":    true,
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %d", port)
	}
	return nil
}

// ValidateNodeName accepts names usable as a hostname label or prefix.
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("node name longer than 63 characters: %s", name)
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '.' || char == '_') {
			return fmt.Errorf("node name may only contain letters, digits, '-', '.' and '_': %s", name)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("node name must not start or end with '-': %s", name)
	}
	return nil
}

func ValidateGovernor(governor string) error {
	if !governors[governor] {
		return fmt.Errorf("unknown cpu governor: %q", governor)
	}
	return nil
}

// ValidateCPUList accepts cpupower's -c syntax ("all", "0-3", "0,2,4-7").
func ValidateCPUList(cpus string) error {
	if cpus == "all" || cpuList.MatchString(cpus) {
		return nil
	}
	return fmt.Errorf("invalid cpu list: %q", cpus)
}

// ValidateFrequency accepts a number with an optional kHz/MHz/GHz unit.
func ValidateFrequency(freq string) error {
	if !frequency.MatchString(freq) {
		return fmt.Errorf("invalid frequency: %q", freq)
	}
	return nil
}

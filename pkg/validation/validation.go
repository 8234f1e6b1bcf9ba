package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"camrelay/pkg/rtspurl"
)

var (
	// StreamIDRegex validates relay stream keys
	StreamIDRegex = regexp.MustCompile(`^src_[0-9a-f]{64}$`)

	// SubjectRegex validates token subjects
	SubjectRegex = regexp.MustCompile(`^[a-zA-Z0-9._@-]+$`)
)

// ValidateRTSPURL validates a camera source URL
func ValidateRTSPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("rtsp_url is required")
	}
	if len(raw) > 2048 {
		return fmt.Errorf("rtsp_url is too long (max 2048 characters)")
	}
	if !rtspurl.IsValid(raw) {
		return fmt.Errorf("rtsp_url must be a valid rtsp:// or rtsps:// URL with a host")
	}
	return nil
}

// ValidateIPv4 validates a dotted-quad IPv4 address
func ValidateIPv4(ip string) error {
	if ip == "" {
		return fmt.Errorf("camera_ip is required")
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil || strings.Contains(ip, ":") {
		return fmt.Errorf("camera_ip must be an IPv4 address")
	}
	return nil
}

// ValidatePort validates a TCP port number
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateStreamID validates stream ID
func ValidateStreamID(streamID string) error {
	if streamID == "" {
		return fmt.Errorf("stream ID is required")
	}
	if !StreamIDRegex.MatchString(streamID) {
		return fmt.Errorf("invalid stream ID format")
	}
	return nil
}

// ValidateCameraName validates camera display name
func ValidateCameraName(name string) error {
	if err := ValidateNonEmptyString(name, "camera name"); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if !utf8.ValidString(name) {
		return fmt.Errorf("camera name contains invalid characters")
	}
	return ValidateStringLength(name, 1, 100, "camera name")
}

// ValidateSubject validates the subject of an operator token
func ValidateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	if len(subject) > 100 {
		return fmt.Errorf("subject is too long (max 100 characters)")
	}
	if !SubjectRegex.MatchString(subject) {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}

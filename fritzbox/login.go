// ABOUTME: Challenge-response login against the router's login_sid.lua endpoint
// ABOUTME: Supports the PBKDF2 scheme and the legacy MD5 scheme
package fritzbox

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding/unicode"
)

// InvalidSID is returned by the router when no session is established.
const InvalidSID = "0000000000000000"

// ErrLoginFailed is returned when the router rejects the credentials.
var ErrLoginFailed = errors.New("login failed")

type sessionInfo struct {
	XMLName   xml.Name `xml:"SessionInfo"`
	SID       string   `xml:"SID"`
	Challenge string   `xml:"Challenge"`
	BlockTime int      `xml:"BlockTime"`
}

func parseSessionInfo(data []byte) (sessionInfo, error) {
	var info sessionInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to parse session info: %w", err)
	}
	return info, nil
}

// ChallengeResponse computes the login response for a challenge.
func ChallengeResponse(challenge, password string) (string, error) {
	if strings.HasPrefix(challenge, "2$") {
		return pbkdf2Response(challenge, password)
	}
	return md5Response(challenge, password)
}

func pbkdf2Response(challenge, password string) (string, error) {
	parts := strings.Split(challenge, "$")
	if len(parts) != 5 {
		return "", fmt.Errorf("malformed challenge %q", challenge)
	}
	iter1, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed challenge iterations: %w", err)
	}
	salt1, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed challenge salt: %w", err)
	}
	iter2, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", fmt.Errorf("malformed challenge iterations: %w", err)
	}
	salt2, err := hex.DecodeString(parts[4])
	if err != nil {
		return "", fmt.Errorf("malformed challenge salt: %w", err)
	}

	hash1 := pbkdf2.Key([]byte(password), salt1, iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(hash2), nil
}

func md5Response(challenge, password string) (string, error) {
	// Characters outside Latin-1 are replaced, matching the router's own encoder.
	var cleaned strings.Builder
	for _, r := range password {
		if r > 255 {
			r = '.'
		}
		cleaned.WriteRune(r)
	}

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().
		String(challenge + "-" + cleaned.String())
	if err != nil {
		return "", fmt.Errorf("failed to encode password: %w", err)
	}
	sum := md5.Sum([]byte(encoded))
	return challenge + "-" + hex.EncodeToString(sum[:]), nil
}

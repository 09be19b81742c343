package auth

import (
	"time"
	_ "time/tzdata"

	"github.com/golang-jwt/jwt/v5"
)

// claims reads the credential payload without verifying its signature.
// The client never trusts these values for authorization; they are display
// hints only.
func claims(token string) (jwt.MapClaims, bool) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, false
	}
	return mc, true
}

// TimezoneFromToken returns the IANA zone named by the "timezone" claim,
// or "tz" when that is absent. Unknown zones are rejected.
func TimezoneFromToken(token string) (string, bool) {
	mc, ok := claims(token)
	if !ok {
		return "", false
	}
	for _, key := range []string{"timezone", "tz"} {
		tz, _ := mc[key].(string)
		if tz == "" {
			continue
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return "", false
		}
		return tz, true
	}
	return "", false
}

// ExpiresAt returns the credential's "exp" claim.
func ExpiresAt(token string) (time.Time, bool) {
	mc, ok := claims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

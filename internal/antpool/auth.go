package antpool

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dreyes86/poolwatch/internal/credentials"
)

// sign computes the HMAC-SHA256 signature the pool API expects: the
// message is userID + accessKey + nonce, keyed with the secret, hex
// encoded uppercase.
func sign(creds credentials.Triple, nonce string) string {
	mac := hmac.New(sha256.New, []byte(creds.SecretKey))
	mac.Write([]byte(creds.UserID + creds.AccessKey + nonce))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// authParams builds the signed form values for one call. Every call gets
// a fresh nonce; a retry never reuses a signature.
func authParams(creds credentials.Triple, nonce string) url.Values {
	v := url.Values{}
	v.Set("key", creds.AccessKey)
	v.Set("nonce", nonce)
	v.Set("signature", sign(creds, nonce))
	v.Set("userId", creds.UserID)
	v.Set("clientUserId", creds.UserID)
	return v
}

var nonceMu sync.Mutex
var lastNonce int64

// nextNonce returns the current millisecond timestamp, bumped when two
// calls land in the same millisecond so a nonce is never reused.
func nextNonce() string {
	nonceMu.Lock()
	defer nonceMu.Unlock()

	n := time.Now().UnixMilli()
	if n <= lastNonce {
		n = lastNonce + 1
	}
	lastNonce = n
	return strconv.FormatInt(n, 10)
}

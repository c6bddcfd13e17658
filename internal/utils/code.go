package utils

import (
    "crypto/rand"
    "math/big"
)

// LoginCodeAlphabet is the character set of one-time login codes.
const LoginCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LoginCodeLength is the number of characters in a login code.
const LoginCodeLength = 6

// NewLoginCode draws LoginCodeLength characters uniformly from
// LoginCodeAlphabet using crypto/rand.
func NewLoginCode() (string, error) {
    buf := make([]byte, LoginCodeLength)
    max := big.NewInt(int64(len(LoginCodeAlphabet)))
    for i := range buf {
        n, err := rand.Int(rand.Reader, max)
        if err != nil {
            return "", err
        }
        buf[i] = LoginCodeAlphabet[n.Int64()]
    }
    return string(buf), nil
}

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Storage encryption uses XChaCha20-Poly1305 which takes a 32 byte key
const StorageKeyBytesLen = 32

func main() {
	b := make([]byte, StorageKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		fmt.Printf("error while generating storage key: %v", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}

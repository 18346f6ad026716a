// Package identity establishes who a caller is. Mutating API requests carry
// the caller's address and a personal-sign secp256k1 signature over the
// request body; recovering the signer and comparing it to the claimed
// address is the HTTP equivalent of the message-source identity the engines
// authorize against.
package identity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Recover returns the address that produced sigHex over body using the
// Ethereum personal-sign scheme (EIP-191 prefixed keccak256 digest).
func Recover(body []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("identity: decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("identity: signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := textHash(body)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("identity: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that sigHex over body was produced by claimed.
func Verify(claimed common.Address, body []byte, sigHex string) error {
	recovered, err := Recover(body, sigHex)
	if err != nil {
		return err
	}
	if recovered != claimed {
		return fmt.Errorf("identity: signature by %s, claimed %s", recovered.Hex(), claimed.Hex())
	}
	return nil
}

// textHash computes the EIP-191 personal-sign digest of data.
func textHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}

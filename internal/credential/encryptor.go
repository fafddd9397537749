package credential

import "context"

// Encryptor is the envelope-encryption contract serviceImpl depends on. Two
// implementations satisfy it: SimpleEncryptionService (master key, no
// external dependency) and kmsEncryptor, which adapts EncryptionService's
// KMS-backed data keys to the same *EncryptedSecret shape. Which one gets
// wired is a deployment choice (config.CredentialConfig.UseKMS), not a code
// change.
type Encryptor interface {
	Encrypt(ctx context.Context, data *CredentialData) (*EncryptedSecret, error)
	Decrypt(ctx context.Context, encrypted *EncryptedSecret) (*CredentialData, error)
}

// kmsEncryptor adapts EncryptionService's (ciphertext, encryptedKey []byte)
// return shape — ciphertext is nonce-prefixed — onto EncryptedSecret's
// split Nonce/Ciphertext/AuthTag fields so callers never branch on which
// backend is in use.
type kmsEncryptor struct {
	svc   *EncryptionService
	keyID string
}

// NewKMSEncryptor wires a KMS client into the Encryptor contract.
func NewKMSEncryptor(kmsClient KMSClientInterface, keyID string) Encryptor {
	return &kmsEncryptor{svc: NewEncryptionService(kmsClient), keyID: keyID}
}

func (k *kmsEncryptor) Encrypt(ctx context.Context, data *CredentialData) (*EncryptedSecret, error) {
	encryptedData, encryptedKey, err := k.svc.EncryptWithContext(ctx, data, k.keyID, nil)
	if err != nil {
		return nil, err
	}
	if len(encryptedData) < NonceSize {
		return nil, &EncryptionError{Op: "Encrypt", Err: ErrInvalidCiphertext}
	}
	nonce := encryptedData[:NonceSize]
	ciphertextWithTag := encryptedData[NonceSize:]
	authTagSize := 16
	if len(ciphertextWithTag) < authTagSize {
		return nil, &EncryptionError{Op: "Encrypt", Err: ErrInvalidCiphertext}
	}
	ciphertext := ciphertextWithTag[:len(ciphertextWithTag)-authTagSize]
	authTag := ciphertextWithTag[len(ciphertextWithTag)-authTagSize:]

	return &EncryptedSecret{
		EncryptedDEK: encryptedKey,
		Ciphertext:   ciphertext,
		Nonce:        nonce,
		AuthTag:      authTag,
		KMSKeyID:     k.keyID,
	}, nil
}

func (k *kmsEncryptor) Decrypt(ctx context.Context, encrypted *EncryptedSecret) (*CredentialData, error) {
	if encrypted == nil {
		return nil, &DecryptionError{Op: "Decrypt", Err: ErrInvalidCiphertext}
	}
	ciphertextWithTag := make([]byte, len(encrypted.Ciphertext)+len(encrypted.AuthTag))
	copy(ciphertextWithTag, encrypted.Ciphertext)
	copy(ciphertextWithTag[len(encrypted.Ciphertext):], encrypted.AuthTag)

	encryptedData := make([]byte, len(encrypted.Nonce)+len(ciphertextWithTag))
	copy(encryptedData, encrypted.Nonce)
	copy(encryptedData[len(encrypted.Nonce):], ciphertextWithTag)

	return k.svc.DecryptWithContext(ctx, encryptedData, encrypted.EncryptedDEK, nil)
}

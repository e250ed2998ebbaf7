package services

import (
	"dinlipi/internal/crypto"
	"dinlipi/internal/models"
)

// EncryptionService wraps the cipher with domain-specific methods
type EncryptionService struct {
	cipher *crypto.Cipher
}

// NewEncryptionService creates a new encryption service
func NewEncryptionService(encryptionKey, blindIndexKey []byte) (*EncryptionService, error) {
	c, err := crypto.New(encryptionKey, blindIndexKey)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{cipher: c}, nil
}

// SealContent encrypts diary entry content before it is stored.
func (s *EncryptionService) SealContent(content string) (string, error) {
	return s.cipher.Seal(content)
}

// DecryptEntry decrypts entry content after retrieving from DB
func (s *EncryptionService) DecryptEntry(entry *models.DiaryEntry) error {
	content, err := s.cipher.Open(entry.Content)
	if err != nil {
		return err
	}
	entry.Content = content
	return nil
}

// SealNotes encrypts optional mood entry notes.
func (s *EncryptionService) SealNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	sealed, err := s.cipher.Seal(*notes)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

// DecryptMoodEntry decrypts mood entry notes after retrieving from DB
func (s *EncryptionService) DecryptMoodEntry(entry *models.MoodEntry) error {
	if entry.Notes == nil {
		return nil
	}
	notes, err := s.cipher.Open(*entry.Notes)
	if err != nil {
		return err
	}
	entry.Notes = &notes
	return nil
}

// HashToken returns the blind index used to store refresh and reset tokens.
func (s *EncryptionService) HashToken(token string) string {
	return s.cipher.BlindIndex(token)
}

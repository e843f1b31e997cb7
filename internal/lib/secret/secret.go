// Package secret хранит и проверяет административный секрет в виде bcrypt-хэша.
package secret

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash возвращает bcrypt-хэш секрета для записи в конфиг (admin.secret_hash).
func Hash(secret string) (string, error) {
	const op = "secret.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сравнивает хэш с предъявленным секретом. Пустой хэш означает, что доступ выключен.
func Verify(hash, presented string) error {
	const op = "secret.Verify"
	if hash == "" {
		return fmt.Errorf("%s: admin secret is not configured", op)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

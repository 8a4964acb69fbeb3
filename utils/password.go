package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword is the explicit pre-persist transformation for
// credentials; callers hash before handing a user to the repository.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

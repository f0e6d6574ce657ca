package payment

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/trezcool/bursary/core"
)

var (
	AllowedProofExtensions = []string{"pdf", "png", "jpg", "jpeg"}

	proofDir = "uploads/payments"

	errInvalidProofType = errors.New("invalid file type, allowed: " + strings.Join(AllowedProofExtensions, ", "))
)

// AllowedProof reports whether filename carries an accepted proof extension.
func AllowedProof(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	for _, allowed := range AllowedProofExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func validateProof(p *Proof) error {
	if p == nil {
		return nil
	}
	if !AllowedProof(p.Filename) {
		return core.NewValidationError(errInvalidProofType, core.FieldError{Field: "proof_document", Error: errInvalidProofType.Error()})
	}
	return nil
}

// ProofPath is the storage path of a proof uploaded at t: uploads/payments/<timestamp>_<studentID>_<filename>.
func ProofPath(t time.Time, studentID, filename string) string {
	name := t.UTC().Format("20060102150405") + "_" + studentID + "_" + SecureFilename(filename)
	return path.Join(proofDir, name)
}

// SecureFilename reduces a client supplied file name to a safe ASCII base name.
func SecureFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)

	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(filename), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "document"
	}
	return name
}

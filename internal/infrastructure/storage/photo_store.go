package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

var _ ledger.PhotoStore = (*FilePhotoStore)(nil)

// FilePhotoStore guarda las fotos de ventas en disco local. Se invoca siempre
// fuera de la sección transaccional; un fallo aquí no afecta la operación.
type FilePhotoStore struct {
	baseDir string
}

// NewFilePhotoStore construye el store y asegura el directorio base.
func NewFilePhotoStore(baseDir string) (*FilePhotoStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("crear directorio de fotos: %w", err)
	}
	return &FilePhotoStore{baseDir: baseDir}, nil
}

// Save escribe la foto y devuelve su ruta relativa al directorio base.
func (s *FilePhotoStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("foto vacía")
	}
	fileName := fmt.Sprintf("%s-%d.jpg", name, time.Now().UnixNano())
	fullPath := filepath.Join(s.baseDir, fileName)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("escribir foto: %w", err)
	}
	return fileName, nil
}

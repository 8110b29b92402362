package qr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generator renders the link a guest's phone opens when the code is scanned.
type Generator struct {
	BaseURL string
	Size    int
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{BaseURL: baseURL, Size: defaultSize}
}

// Link concatenates the base URL and the token as-is.
func (g *Generator) Link(token string) string {
	return g.BaseURL + token
}

func (g *Generator) PNG(token string) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = defaultSize
	}
	return qrcode.Encode(g.Link(token), qrcode.Medium, size)
}

// WriteFile stores the PNG as <dir>/<name>.png and returns its path.
func (g *Generator) WriteFile(dir, name, token string) (string, error) {
	png, err := g.PNG(token)
	if err != nil {
		return "", fmt.Errorf("encode qr for %s: %w", name, err)
	}
	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

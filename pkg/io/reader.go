package io

import (
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// imageExtensions are the file types LoadImages understands.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// LoadImages decodes every image in the file at path. PDFs may yield several
// images, one per embedded picture; plain image files yield one.
func LoadImages(path string) ([]image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !imageExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", path, err)
	}
	defer file.Close()

	if ext != ".pdf" {
		img, _, err := image.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("image.Decode failed for %s: %w", path, err)
		}
		return []image.Image{img}, nil
	}

	// pdfcpu is used to extract raw image data from the PDF wrapper.
	extracted, err := api.ExtractImagesRaw(file, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("could not extract images from PDF %s: %w", path, err)
	}

	var images []image.Image
	for _, page := range extracted {
		for _, raw := range page {
			img, _, err := image.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("image.Decode failed for picture in %s: %w", path, err)
			}
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found in %s", path)
	}
	return images, nil
}

// ListImageFiles returns the loadable files directly inside dir, sorted by
// name.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

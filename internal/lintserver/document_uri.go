package lintserver

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
)

const PROTO_FILE_EXTENSION = ".proto"

var (
	ErrFileURIExpected = errors.New("a file: URI was expected")
)

// normalizeURI turns URIs of the shape scheme:/path into scheme:///path,
// it does not check if the URI is valid.
func normalizeURI[S ~string](uri S) S {
	scheme, afterColonSlash, ok := strings.Cut(string(uri), ":/")
	if !ok {
		//invalid URI
		return uri
	}
	if strings.HasPrefix(afterColonSlash, "//") {
		return uri //already normalized
	}
	return S(scheme + ":///" + afterColonSlash)
}

// FileURI returns the file: URI of an absolute path.
func FileURI(path string) (defines.DocumentUri, error) {
	if path == "" {
		return "", errors.New("failed to get document URI: empty path")
	}
	if path[0] != '/' {
		return "", fmt.Errorf("failed to get document URI: path is not absolute: %q", path)
	}
	return defines.DocumentUri("file://" + path), nil
}

// getPath returns a clean absolute path from a URI.
func getPath(uri defines.DocumentUri) (string, error) {
	u, err := url.Parse(string(normalizeURI(uri)))
	if err != nil {
		return "", fmt.Errorf("invalid URI: %s: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w, URI is: %s", ErrFileURIExpected, string(uri))
	}
	return filepath.Clean(u.Path), nil
}

// getProtoFilePath returns a clean path from a URI, it also checks that the
// file extension is `.proto`.
func getProtoFilePath(uri defines.DocumentUri) (string, error) {
	clean, err := getPath(uri)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(clean, PROTO_FILE_EXTENSION) {
		return "", fmt.Errorf("unexpected file extension: '%s'", filepath.Ext(clean))
	}
	return clean, nil
}

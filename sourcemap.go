package gjsdb

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

const sourceMappingURLPrefix = "//# sourceMappingURL="

var errNoSourceMap = errors.New("no source map")

// sourceMappingURL returns the URL in the last sourceMappingURL comment of src.
func sourceMappingURL(src string) string {
	i := strings.LastIndex(src, sourceMappingURLPrefix)
	if i < 0 {
		return ""
	}
	url := src[i+len(sourceMappingURLPrefix):]
	if e := strings.IndexAny(url, "\r\n"); e >= 0 {
		url = url[:e]
	}
	return strings.TrimSpace(url)
}

// loadSourceMap resolves the source map referenced by src. File URLs are
// resolved relative to the directory of the script.
func loadSourceMap(scriptPath, src string) (*sourcemap.Consumer, error) {
	url := sourceMappingURL(src)
	if url == "" {
		return nil, errNoSourceMap
	}
	var data []byte
	if strings.HasPrefix(url, "data:") {
		comma := strings.IndexByte(url, ',')
		if comma < 0 || !strings.HasSuffix(url[:comma], ";base64") {
			return nil, errors.New("unsupported source map data URL")
		}
		b, err := base64.StdEncoding.DecodeString(url[comma+1:])
		if err != nil {
			return nil, err
		}
		data = b
		url = ""
	} else {
		p := strings.TrimPrefix(url, "file://")
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(scriptPath), p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		data = b
		url = p
	}
	return sourcemap.Parse(url, data)
}

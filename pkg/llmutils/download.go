package llmutils

import (
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// DownloadImageData fetches the image at url and returns its subtype and
// bytes. The subtype is the part of the Content-Type after the slash, "png"
// for "image/png"; providers whose SDKs take inline image data use it to
// rebuild the MIME type.
func DownloadImageData(url string) (string, []byte, error) {
	resp, err := http.Get(url) //nolint
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to fetch image from url")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read image bytes")
	}

	mimeType := resp.Header.Get("Content-Type")
	subtype, ok := strings.CutPrefix(mimeType, "image/")
	if !ok || subtype == "" || strings.Contains(subtype, "/") {
		return "", nil, errors.Newf("invalid mime type %v", mimeType)
	}
	return subtype, data, nil
}

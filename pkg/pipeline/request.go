package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/chive/backend/pkg/graph"
)

// Multipart field names of an execution request.
const (
	FieldImages = "images"
	FieldData   = "data"
)

// Asset is one sample image chosen by the user.
type Asset struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsImage reports whether a media type denotes an image.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

// Encode writes the multipart execution request for g and assets to w and
// returns its content type. Each asset becomes an "images" file part; the
// graph is the "data" field.
func Encode(w io.Writer, g graph.Graph, assets []Asset) (string, error) {
	mw := multipart.NewWriter(w)
	for _, a := range assets {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldImages, a.Name))
		h.Set("Content-Type", a.MediaType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(a.Data); err != nil {
			return "", err
		}
	}

	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := mw.WriteField(FieldData, string(data)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

// DecodeData parses and validates the "data" field of a request.
func DecodeData(data string) (graph.Graph, error) {
	g, err := graph.Parse([]byte(data))
	if err != nil {
		return graph.Graph{}, fmt.Errorf("invalid pipeline graph: %w", err)
	}
	return g, nil
}

// ArchiveName is the download name of a result archive received at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("processed-images-%d.zip", t.UnixMilli())
}

package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/udem-taln/nerbridge/pkg/models"
)

var _ models.ModelLoader = &SpacyLoader{}

// SpacyLoader loads pipelines on a spaCy NLP server. The server owns the model; a handle
// is only a name bound to a client once the server has confirmed the pipeline is loaded.
type SpacyLoader struct {
	serverURL string
	language  string
	client    *http.Client
}

func NewSpacyLoader(serverURL, language string, client *http.Client) *SpacyLoader {
	return &SpacyLoader{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		language:  language,
		client:    client,
	}
}

// Load asks the server to load (or confirm) the named pipeline.
func (l *SpacyLoader) Load(ctx context.Context, name string) (models.ModelHandle, error) {
	if name == "" {
		return nil, errors.New("model name is empty")
	}

	endpoint := l.serverURL + "/models/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting model %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf(
			"NLP server returned %d for model %s: %s",
			resp.StatusCode,
			name,
			strings.TrimSpace(string(body)),
		)
	}

	return &spacyHandle{name: name, loader: l}, nil
}

type spacyHandle struct {
	name   string
	loader *SpacyLoader
}

func (h *spacyHandle) Name() string { return h.name }

// Analyze posts the sentence to the server's /entities endpoint and flattens every entity
// match into a span, in sentence order.
func (h *spacyHandle) Analyze(ctx context.Context, sentence string) ([]models.Entity, error) {
	recordID := uuid.New().String()
	requestBody := models.EntityRequest{
		Model: h.name,
		Texts: []models.EntityRequestRecord{{
			UUID:     recordID,
			Text:     sentence,
			Language: h.loader.language,
		}},
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		h.loader.serverURL+"/entities",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.loader.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making POST request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"NLP server returned %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(bodyBytes)),
		)
	}

	var response models.EntityResponse
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body: %w", err)
	}

	for _, record := range response.Texts {
		if record.UUID == recordID {
			return flattenEntities(record.Entities), nil
		}
	}

	return nil, fmt.Errorf("NLP server response is missing record %s", recordID)
}

// flattenEntities turns the server's grouped entities (one per distinct name, with every
// occurrence as a match) back into one span per occurrence ordered by start offset.
func flattenEntities(entities []models.ServerEntity) []models.Entity {
	var spans []models.Entity
	for _, e := range entities {
		for _, m := range e.Matches {
			spans = append(spans, models.Entity{
				Text:  m.Text,
				Label: e.Label,
				Start: m.Start,
				End:   m.End,
			})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(workflows.HandleCaption, Func(func(context.Context, workflows.Arguments, *output.Processor) (*Result, error) {
		return &Result{}, nil
	}))

	_, err := reg.Lookup(workflows.HandleCaption)
	require.NoError(t, err)

	_, err = reg.Lookup(workflows.HandleBark)
	require.ErrorIs(t, err, ErrEngineNotFound)
	assert.Contains(t, err.Error(), "bark")
	assert.Equal(t, []workflows.Handle{workflows.HandleCaption}, reg.Handles())
}

func TestResult_NSFW(t *testing.T) {
	assert.False(t, (&Result{}).NSFW())
	assert.False(t, (&Result{NSFWContentDetected: []bool{false, false}}).NSFW())
	assert.True(t, (&Result{NSFWContentDetected: []bool{false, true}}).NSFW())
}

func TestHTTPEngine_Run(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/engines/diffusion", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images":                [][]byte{pngBytes(t, 4, 4), pngBytes(t, 4, 4)},
			"nsfw_content_detected": []bool{false, true},
			"other_outputs":         map[string][][]byte{"preprocessed_input": {pngBytes(t, 2, 2)}},
			"intermediates":         [][]byte{pngBytes(t, 3, 3)},
		})
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, 0, nil).Engine(workflows.HandleDiffusion)
	proc := output.NewProcessor([]string{output.SlotPrimary, output.SlotIntermediates}, "")
	args := workflows.Arguments{
		"prompt":        "cat",
		"image":         imaging.New(8, 8, color.Black),
		"pipeline_type": registry.TypeRef{Library: "diffusers", Name: "DiffusionPipeline", Kind: registry.KindPipeline},
	}

	res, err := eng.Run(context.Background(), args, proc)
	require.NoError(t, err)

	assert.Len(t, res.Images, 2)
	assert.True(t, res.NSFW())
	require.Contains(t, res.OtherOutputs, "preprocessed_input")
	assert.Equal(t, 2, res.OtherOutputs["preprocessed_input"][0].Bounds().Dx())
	assert.Equal(t, 1, proc.IntermediateCount())

	arguments := got["arguments"].(map[string]any)
	assert.Equal(t, "cat", arguments["prompt"])
	img := arguments["image"].(map[string]any)
	assert.Equal(t, "png", img["format"])
	assert.NotEmpty(t, img["data"])
	assert.Equal(t, "DiffusionPipeline", arguments["pipeline_type"].(map[string]any)["name"])
	assert.Equal(t, true, got["intermediates"])
	assert.Equal(t, "image/jpeg", got["content_type"])
}

func TestHTTPEngine_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":[],"text":"a red barn"}`))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, 0, nil).Engine(workflows.HandleCaption)
	res, err := eng.Run(context.Background(), workflows.Arguments{}, output.NewProcessor(nil, ""))
	require.NoError(t, err)
	require.NotNil(t, res.Text)
	assert.Equal(t, "a red barn", *res.Text)
	assert.Empty(t, res.Images)
}

func TestHTTPEngine_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"CUDA out of memory"}`))
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, 0, nil).Engine(workflows.HandleTxt2Vid)
	_, err := eng.Run(context.Background(), workflows.Arguments{}, output.NewProcessor(nil, ""))
	require.ErrorIs(t, err, ErrEngineFailed)
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.Contains(t, err.Error(), "txt2vid")
}

func TestHTTPEngine_RegisterAll(t *testing.T) {
	reg := NewRegistry()
	NewHTTPEngine("http://localhost:1", 0, nil).RegisterAll(reg)
	for _, handle := range workflows.AllHandles {
		_, err := reg.Lookup(handle)
		assert.NoError(t, err, handle)
	}
}

func TestHTTPEngine_Preprocess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/preprocess", r.URL.Path)
		var req struct {
			Image   wireImage         `json:"image"`
			Control media.ControlSpec `json:"control"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "lllyasviel/sd-controlnet-canny", req.Control.ModelName)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"image": pngBytes(t, 6, 5)})
	}))
	defer srv.Close()

	var pre media.Preprocessor = NewHTTPEngine(srv.URL, 0, nil)
	img, err := pre.Preprocess(context.Background(), image.NewNRGBA(image.Rect(0, 0, 6, 5)), media.ControlSpec{
		ModelName:  "lllyasviel/sd-controlnet-canny",
		Preprocess: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())
}

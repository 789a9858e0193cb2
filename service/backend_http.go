package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
)

// 下游模型服务的 HTTP 客户端实现
// 生成类调用耗时可达数分钟，与轻量会话操作使用不同的超时

// HTTPSegmentBackend 2D 分割模型服务客户端
type HTTPSegmentBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSegmentBackend(cfg *config.BackendsConfig) *HTTPSegmentBackend {
	return &HTTPSegmentBackend{
		baseURL: cfg.Segment2DURL,
		client:  &http.Client{Timeout: cfg.SegmentTimeout},
	}
}

func (b *HTTPSegmentBackend) SetImage(ctx context.Context, imageData []byte) (string, int, int, error) {
	body, contentType, err := multipartBody(map[string][]filePart{
		"image": {{name: "image.png", data: imageData}},
	}, nil)
	if err != nil {
		return "", 0, 0, err
	}

	var result struct {
		EmbeddingID string `json:"embedding_id"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
	}
	if err := b.do(ctx, http.MethodPost, b.baseURL+"/set_image", contentType, body, &result); err != nil {
		return "", 0, 0, err
	}
	if result.EmbeddingID == "" {
		return "", 0, 0, fmt.Errorf("%w: missing embedding_id", model.ErrMalformedBackend)
	}
	return result.EmbeddingID, result.Width, result.Height, nil
}

func (b *HTTPSegmentBackend) Predict(ctx context.Context, req *BackendPredictRequest) (*BackendPredictResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var result struct {
		Masks  [][]byte  `json:"masks"`
		Scores []float64 `json:"scores"`
		Logits [][]byte  `json:"logits"`
	}
	if err := b.do(ctx, http.MethodPost, b.baseURL+"/predict", "application/json", bytes.NewReader(payload), &result); err != nil {
		return nil, err
	}
	if len(result.Masks) == 0 || len(result.Masks) != len(result.Scores) || len(result.Masks) != len(result.Logits) {
		return nil, fmt.Errorf("%w: masks/scores/logits length mismatch", model.ErrMalformedBackend)
	}
	return &BackendPredictResult{
		Masks:  result.Masks,
		Scores: result.Scores,
		Logits: result.Logits,
	}, nil
}

func (b *HTTPSegmentBackend) Healthy(ctx context.Context) bool {
	var result struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.do(ctx, http.MethodGet, b.baseURL+"/health", "", nil, &result); err != nil {
		return false
	}
	return result.ModelLoaded
}

func (b *HTTPSegmentBackend) do(ctx context.Context, method, url, contentType string, body io.Reader, out interface{}) error {
	return doJSON(ctx, b.client, method, url, contentType, body, out)
}

// HTTPGenerateBackend Trellis 生成服务客户端
type HTTPGenerateBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGenerateBackend(cfg *config.BackendsConfig) *HTTPGenerateBackend {
	return &HTTPGenerateBackend{
		baseURL: cfg.GenerationURL,
		client:  &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

func (b *HTTPGenerateBackend) GenerateText(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	q := generateQuery(params)
	q.Set("prompt", prompt)

	var result struct {
		GLBFile string `json:"glb_file"`
	}
	endpoint := b.baseURL + "/generate-text?" + q.Encode()
	if err := doJSON(ctx, b.client, http.MethodPost, endpoint, "", nil, &result); err != nil {
		return "", err
	}
	return requireArtifact(result.GLBFile)
}

func (b *HTTPGenerateBackend) GenerateSingle(ctx context.Context, image []byte, params GenerateParams) (string, error) {
	body, contentType, err := multipartBody(map[string][]filePart{
		"file": {{name: "input.png", data: image}},
	}, nil)
	if err != nil {
		return "", err
	}

	q := generateQuery(params)
	var result struct {
		GLBFile string `json:"glb_file"`
	}
	endpoint := b.baseURL + "/generate-single?" + q.Encode()
	if err := doJSON(ctx, b.client, http.MethodPost, endpoint, contentType, body, &result); err != nil {
		return "", err
	}
	return requireArtifact(result.GLBFile)
}

func (b *HTTPGenerateBackend) GenerateMulti(ctx context.Context, images [][]byte, params GenerateParams) (string, error) {
	parts := make([]filePart, len(images))
	for i, img := range images {
		parts[i] = filePart{name: fmt.Sprintf("%d.png", i), data: img}
	}
	body, contentType, err := multipartBody(map[string][]filePart{"files": parts}, nil)
	if err != nil {
		return "", err
	}

	q := generateQuery(params)
	var result struct {
		GLBFile string `json:"glb_file"`
	}
	endpoint := b.baseURL + "/generate-multi?" + q.Encode()
	if err := doJSON(ctx, b.client, http.MethodPost, endpoint, contentType, body, &result); err != nil {
		return "", err
	}
	return requireArtifact(result.GLBFile)
}

func (b *HTTPGenerateBackend) Download(ctx context.Context, artifactPath string) ([]byte, error) {
	return downloadBytes(ctx, b.client, b.baseURL+artifactPath)
}

// HTTPSAM3DBackend SAM3D 生成服务客户端
type HTTPSAM3DBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSAM3DBackend(cfg *config.BackendsConfig) *HTTPSAM3DBackend {
	return &HTTPSAM3DBackend{
		baseURL: cfg.SAM3DURL,
		client:  &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

func (b *HTTPSAM3DBackend) Generate(ctx context.Context, image, mask []byte, seed int) (string, error) {
	body, contentType, err := multipartBody(map[string][]filePart{
		"image":      {{name: "image.png", data: image}},
		"mask_image": {{name: "mask.png", data: mask}},
	}, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		GLBFile string `json:"glb_file"`
	}
	endpoint := b.baseURL + "/generate?seed=" + strconv.Itoa(seed)
	if err := doJSON(ctx, b.client, http.MethodPost, endpoint, contentType, body, &result); err != nil {
		return "", err
	}
	return requireArtifact(result.GLBFile)
}

func (b *HTTPSAM3DBackend) GenerateBatch(ctx context.Context, image []byte, masks [][]byte, seed int) ([]string, error) {
	maskParts := make([]filePart, len(masks))
	for i, m := range masks {
		maskParts[i] = filePart{name: fmt.Sprintf("%d.png", i), data: m}
	}
	body, contentType, err := multipartBody(map[string][]filePart{
		"image":       {{name: "image.png", data: image}},
		"mask_images": maskParts,
	}, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		GLBFiles []string `json:"glb_files"`
	}
	endpoint := b.baseURL + "/generate-batch?seed=" + strconv.Itoa(seed)
	if err := doJSON(ctx, b.client, http.MethodPost, endpoint, contentType, body, &result); err != nil {
		return nil, err
	}
	if len(result.GLBFiles) == 0 {
		return nil, fmt.Errorf("%w: missing glb_files", model.ErrMalformedBackend)
	}
	return result.GLBFiles, nil
}

func (b *HTTPSAM3DBackend) Download(ctx context.Context, artifactPath string) ([]byte, error) {
	return downloadBytes(ctx, b.client, b.baseURL+artifactPath)
}

// HTTPSegment3DBackend P3-SAM 网格分割服务客户端
type HTTPSegment3DBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSegment3DBackend(cfg *config.BackendsConfig) *HTTPSegment3DBackend {
	return &HTTPSegment3DBackend{
		baseURL: cfg.Segment3DURL,
		client:  &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

func (b *HTTPSegment3DBackend) Segment(ctx context.Context, glbData []byte) (string, error) {
	body, contentType, err := multipartBody(map[string][]filePart{
		"file": {{name: "input.glb", data: glbData}},
	}, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		SegmentedGLB string `json:"segmented_glb"`
	}
	if err := doJSON(ctx, b.client, http.MethodPost, b.baseURL+"/segment", contentType, body, &result); err != nil {
		return "", err
	}
	return requireArtifact(result.SegmentedGLB)
}

func (b *HTTPSegment3DBackend) Download(ctx context.Context, artifactPath string) ([]byte, error) {
	return downloadBytes(ctx, b.client, b.baseURL+artifactPath)
}

// ---- 共用辅助 ----

type filePart struct {
	name string
	data []byte
}

func multipartBody(files map[string][]filePart, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, parts := range files {
		for _, p := range parts {
			fw, err := w.CreateFormFile(field, p.name)
			if err != nil {
				return nil, "", err
			}
			if _, err := fw.Write(p.data); err != nil {
				return nil, "", err
			}
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func generateQuery(params GenerateParams) url.Values {
	q := url.Values{}
	q.Set("seed", strconv.Itoa(params.Seed))
	q.Set("simplify", strconv.FormatFloat(params.Simplify, 'f', -1, 64))
	q.Set("sparse_steps", strconv.Itoa(params.SparseSteps))
	q.Set("sparse_cfg", strconv.FormatFloat(params.SparseCFG, 'f', -1, 64))
	q.Set("slat_steps", strconv.Itoa(params.SlatSteps))
	q.Set("slat_cfg", strconv.FormatFloat(params.SlatCFG, 'f', -1, 64))
	return q
}

// requireArtifact 后端响应缺少制品路径字段视为违反契约
func requireArtifact(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: missing artifact path", model.ErrMalformedBackend)
	}
	return path, nil
}

func doJSON(ctx context.Context, client *http.Client, method, url, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: backend returned 503: %s", model.ErrModelUnavailable, data)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: backend status %d: %s", model.ErrTransport, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", model.ErrMalformedBackend, err)
		}
	}
	return nil
}

func downloadBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: artifact download status %d", model.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", model.ErrMalformedBackend)
	}
	return data, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/between2058/Phidias/config"
	"github.com/between2058/Phidias/model"
	"github.com/between2058/Phidias/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerateBackend struct {
	textErr   error
	singleErr error
	multiErr  error
	dlErr     error
	calls     []string
	glb       []byte
}

func (f *fakeGenerateBackend) GenerateText(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	f.calls = append(f.calls, "text")
	if f.textErr != nil {
		return "", f.textErr
	}
	return "artifacts/text.glb", nil
}

func (f *fakeGenerateBackend) GenerateSingle(ctx context.Context, image []byte, params GenerateParams) (string, error) {
	f.calls = append(f.calls, "single")
	if f.singleErr != nil {
		return "", f.singleErr
	}
	return "artifacts/single.glb", nil
}

func (f *fakeGenerateBackend) GenerateMulti(ctx context.Context, images [][]byte, params GenerateParams) (string, error) {
	f.calls = append(f.calls, "multi")
	if f.multiErr != nil {
		return "", f.multiErr
	}
	return "artifacts/multi.glb", nil
}

func (f *fakeGenerateBackend) Download(ctx context.Context, artifactPath string) ([]byte, error) {
	f.calls = append(f.calls, "download:"+artifactPath)
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	if f.glb != nil {
		return f.glb, nil
	}
	return []byte("glb:" + artifactPath), nil
}

type fakeSAM3DBackend struct {
	genErr error
	dlErr  error
	calls  int
}

func (f *fakeSAM3DBackend) Generate(ctx context.Context, image, mask []byte, seed int) (string, error) {
	f.calls++
	if f.genErr != nil {
		return "", f.genErr
	}
	return fmt.Sprintf("artifacts/sam3d_%d.glb", seed), nil
}

func (f *fakeSAM3DBackend) GenerateBatch(ctx context.Context, image []byte, masks [][]byte, seed int) ([]string, error) {
	f.calls++
	if f.genErr != nil {
		return nil, f.genErr
	}
	paths := make([]string, len(masks))
	for i := range masks {
		paths[i] = fmt.Sprintf("artifacts/batch_%d.glb", i)
	}
	return paths, nil
}

func (f *fakeSAM3DBackend) Download(ctx context.Context, artifactPath string) ([]byte, error) {
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	return []byte("glb:" + artifactPath), nil
}

func newGenerateService(backend GenerateBackend, sam3d SAM3DBackend, dryRun bool) *GenerateService {
	cfg := &config.Config{DryRun: dryRun}
	return NewGenerateService(cfg, backend, sam3d, nil)
}

// base64 编码的占位图片字节
const b64Image = "aGVsbG8="

func TestSelectMode(t *testing.T) {
	mode, err := SelectMode(&model.GenerationRequest{Prompt: "a red chair"})
	require.NoError(t, err)
	assert.Equal(t, ModeText, mode)

	mode, err = SelectMode(&model.GenerationRequest{ImageURL: b64Image})
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, mode)

	mode, err = SelectMode(&model.GenerationRequest{Images: []string{b64Image}})
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, mode)

	// 多图优先于单图字段，即便 image_url 同时给了
	mode, err = SelectMode(&model.GenerationRequest{
		ImageURL: b64Image,
		Images:   []string{b64Image, b64Image},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeMulti, mode)

	// 图片优先于文字
	mode, err = SelectMode(&model.GenerationRequest{Prompt: "chair", ImageURL: b64Image})
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, mode)
}

func TestSelectModeMissingInput(t *testing.T) {
	_, err := SelectMode(&model.GenerationRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestGenerateText(t *testing.T) {
	backend := &fakeGenerateBackend{}
	svc := newGenerateService(backend, nil, false)

	resp, err := svc.Generate(context.Background(), &model.GenerationRequest{Prompt: "a red chair"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.GLBData)

	// 二段拉取：生成返回路径后再下载字节
	assert.Equal(t, []string{"text", "download:artifacts/text.glb"}, backend.calls)

	glb, err := utils.DecodeImagePayload(resp.GLBData)
	require.NoError(t, err)
	assert.Equal(t, []byte("glb:artifacts/text.glb"), glb)
}

func TestGenerateMulti(t *testing.T) {
	backend := &fakeGenerateBackend{}
	svc := newGenerateService(backend, nil, false)

	resp, err := svc.Generate(context.Background(), &model.GenerationRequest{
		Images: []string{b64Image, b64Image, b64Image},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{"multi", "download:artifacts/multi.glb"}, backend.calls)
}

func TestGenerateDryRun(t *testing.T) {
	backend := &fakeGenerateBackend{}
	svc := newGenerateService(backend, nil, true)

	resp, err := svc.Generate(context.Background(), &model.GenerationRequest{Prompt: "chair"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)

	// dry-run 不触达任何后端
	assert.Empty(t, backend.calls)

	glb, err := utils.DecodeImagePayload(resp.GLBData)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderGLB, glb)
	assert.NotEmpty(t, glb)
}

func TestGenerateDryRunStillValidates(t *testing.T) {
	svc := newGenerateService(&fakeGenerateBackend{}, nil, true)

	_, err := svc.Generate(context.Background(), &model.GenerationRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestGenerateTransportFailureDegrades(t *testing.T) {
	backend := &fakeGenerateBackend{
		textErr: fmt.Errorf("%w: connection refused", model.ErrTransport),
	}
	svc := newGenerateService(backend, nil, false)

	resp, err := svc.Generate(context.Background(), &model.GenerationRequest{Prompt: "chair"})
	require.NoError(t, err)

	// 降级：状态仍为成功，占位模型 + message 说明原因
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Message, "占位模型")

	glb, err := utils.DecodeImagePayload(resp.GLBData)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderGLB, glb)
}

func TestGenerateDownloadFailureDegrades(t *testing.T) {
	backend := &fakeGenerateBackend{
		dlErr: fmt.Errorf("%w: service unavailable", model.ErrModelUnavailable),
	}
	svc := newGenerateService(backend, nil, false)

	resp, err := svc.Generate(context.Background(), &model.GenerationRequest{Prompt: "chair"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Message, "占位模型")
}

func TestGenerateMalformedBackendDoesNotDegrade(t *testing.T) {
	backend := &fakeGenerateBackend{
		textErr: fmt.Errorf("%w: missing glb_file", model.ErrMalformedBackend),
	}
	svc := newGenerateService(backend, nil, false)

	_, err := svc.Generate(context.Background(), &model.GenerationRequest{Prompt: "chair"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedBackend))
}

func TestGenerateInvalidImagePayload(t *testing.T) {
	svc := newGenerateService(&fakeGenerateBackend{}, nil, false)

	_, err := svc.Generate(context.Background(), &model.GenerationRequest{
		ImageURL: "not valid base64 !!!",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestGenerateSAM3D(t *testing.T) {
	sam3d := &fakeSAM3DBackend{}
	svc := newGenerateService(nil, sam3d, false)

	resp, err := svc.GenerateSAM3D(context.Background(), &model.SAM3DRequest{
		Image: b64Image,
		Mask:  b64Image,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)

	// 缺省种子 42
	glb, err := utils.DecodeImagePayload(resp.GLBData)
	require.NoError(t, err)
	assert.Equal(t, []byte("glb:artifacts/sam3d_42.glb"), glb)
}

func TestGenerateSAM3DMissingInput(t *testing.T) {
	svc := newGenerateService(nil, &fakeSAM3DBackend{}, false)

	_, err := svc.GenerateSAM3D(context.Background(), &model.SAM3DRequest{Image: b64Image})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestGenerateSAM3DFailureDegrades(t *testing.T) {
	sam3d := &fakeSAM3DBackend{genErr: fmt.Errorf("%w: timeout", model.ErrTransport)}
	svc := newGenerateService(nil, sam3d, false)

	resp, err := svc.GenerateSAM3D(context.Background(), &model.SAM3DRequest{
		Image: b64Image,
		Mask:  b64Image,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Message, "占位模型")
}

func TestGenerateSAM3DBatch(t *testing.T) {
	sam3d := &fakeSAM3DBackend{}
	svc := newGenerateService(nil, sam3d, false)

	resp, err := svc.GenerateSAM3DBatch(context.Background(), &model.SAM3DBatchRequest{
		Image: b64Image,
		Masks: []string{b64Image, b64Image},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.GLBs, 2)

	glb, err := utils.DecodeImagePayload(resp.GLBs[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("glb:artifacts/batch_1.glb"), glb)
}

func TestGenerateSAM3DBatchFailureDegrades(t *testing.T) {
	sam3d := &fakeSAM3DBackend{genErr: fmt.Errorf("%w: connection reset", model.ErrTransport)}
	svc := newGenerateService(nil, sam3d, false)

	resp, err := svc.GenerateSAM3DBatch(context.Background(), &model.SAM3DBatchRequest{
		Image: b64Image,
		Masks: []string{b64Image, b64Image, b64Image},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.GLBs, 3)
	assert.Contains(t, resp.Message, "占位模型")
}

func TestApplyDefaults(t *testing.T) {
	req := &model.GenerationRequest{Prompt: "chair"}
	req.ApplyDefaults()

	assert.Equal(t, 1, req.Seed)
	assert.Equal(t, 0.95, req.Simplify)
	assert.Equal(t, 12, req.SSSamplingSteps)
	assert.Equal(t, 7.5, req.SSGuidanceStrength)
	assert.Equal(t, 12, req.SlatSamplingSteps)
	assert.Equal(t, 7.5, req.SlatGuidanceStrength)

	// 显式给的值不被覆盖
	req2 := &model.GenerationRequest{Prompt: "chair"}
	req2.Seed = 7
	req2.Simplify = 0.5
	req2.ApplyDefaults()
	assert.Equal(t, 7, req2.Seed)
	assert.Equal(t, 0.5, req2.Simplify)
}

package service

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/TIANLI0/StrokeCut/config"
	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/utils"
)

// Options 抠图流水线参数
type Options struct {
	LineWidth       int
	Iterations      int
	BlurKernel      int
	KeepLargestOnly bool
	Debug           bool
	DebugDir        string
	MaxConcurrent   int
	QueueTimeout    time.Duration
}

func OptionsFromConfig(cfg *config.GrabCutConfig) Options {
	return Options{
		LineWidth:       cfg.LineWidth,
		Iterations:      cfg.Iterations,
		BlurKernel:      cfg.BlurKernel,
		KeepLargestOnly: cfg.KeepLargestOnly,
		Debug:           cfg.Debug,
		DebugDir:        cfg.DebugDir,
		MaxConcurrent:   cfg.MaxConcurrent,
		QueueTimeout:    time.Duration(cfg.QueueTimeout) * time.Second,
	}
}

// ResultStore 保存抠图结果元数据
type ResultStore interface {
	SetCutResult(ctx context.Context, key string, result *model.CutResult) error
}

// CutOutcome 后台抠图的结果
type CutOutcome struct {
	Result *model.CutResult
	Err    error
}

// Pipeline 笔画 → 种子掩码 → GrabCut → 合成
type Pipeline struct {
	opts       Options
	builder    *MaskBuilder
	oracle     Oracle
	compositor *ResultCompositor
	stores     []ArtifactStore
	results    ResultStore
	semaphore  chan struct{}
	logger     *zap.Logger
}

func NewPipeline(opts Options, oracle Oracle, stores ...ArtifactStore) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Pipeline{
		opts:       opts,
		builder:    NewMaskBuilder(opts.LineWidth),
		oracle:     oracle,
		compositor: NewResultCompositor(opts.KeepLargestOnly),
		stores:     stores,
		semaphore:  make(chan struct{}, opts.MaxConcurrent),
		logger:     utils.Named("pipeline"),
	}
}

// WithResultStore 设置结果元数据的存储
func (p *Pipeline) WithResultStore(rs ResultStore) *Pipeline {
	p.results = rs
	return p
}

// Submit 立即占用会话，然后在后台 goroutine 中执行抠图
func (p *Pipeline) Submit(ctx context.Context, s *Session) <-chan CutOutcome {
	out := make(chan CutOutcome, 1)

	job, err := s.beginCut()
	if err != nil {
		out <- CutOutcome{Err: err}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		result, err := p.execute(ctx, s, job)
		out <- CutOutcome{Result: result, Err: err}
	}()
	return out
}

// Cut 对会话当前笔画执行一次抠图。无论成功与否，会话的笔画都会被清空；
// 失败时保留上一次的结果和蚂蚁线。
func (p *Pipeline) Cut(ctx context.Context, s *Session) (*model.CutResult, error) {
	job, err := s.beginCut()
	if err != nil {
		return nil, err
	}
	return p.execute(ctx, s, job)
}

func (p *Pipeline) execute(ctx context.Context, s *Session, job *cutJob) (result *model.CutResult, err error) {
	defer func() { s.finishCut(result) }()

	// 并发控制
	queueCtx := ctx
	if p.opts.QueueTimeout > 0 {
		var cancel context.CancelFunc
		queueCtx, cancel = context.WithTimeout(ctx, p.opts.QueueTimeout)
		defer cancel()
	}
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-queueCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrQueueFull
	}

	result, outline, err := p.run(ctx, job)
	if err != nil {
		p.logger.Warn("cut failed",
			zap.String("session", job.sessionID),
			zap.Int("points", len(job.points)),
			zap.Error(err))
		return nil, err
	}

	s.Animator().Publish(outline)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, job *cutJob) (*model.CutResult, []image.Point, error) {
	startTime := time.Now()

	bounds := image.Rect(0, 0, job.photo.Cols(), job.photo.Rows())
	region, err := NewCropRegion(job.box, p.opts.LineWidth, bounds)
	if err != nil {
		return nil, nil, err
	}
	key := utils.StrokeKey(job.photoMD5, job.points)

	crop := job.photo.Region(region)
	defer crop.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := p.opts.BlurKernel
	gocv.GaussianBlur(crop, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	mask, err := p.builder.Build(ToLocal(job.points, region.Min), region.Size())
	if err != nil {
		return nil, nil, err
	}
	defer mask.Close()

	if !hasBothSeeds(mask) {
		return nil, nil, errors.Wrapf(ErrInvalidRegion, "seed mask for region %v lacks foreground or background", region)
	}

	var dumpErr error
	if p.opts.Debug {
		dumpErr = multierr.Append(dumpErr, p.dumpMask(key+"_1_seed.png", mask, 85))
	}

	// 调用 oracle 之前是唯一的取消点
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	local := image.Rect(0, 0, region.Dx(), region.Dy())
	if err := p.oracle.Refine(blurred, &mask, local, p.opts.Iterations); err != nil {
		return nil, nil, multierr.Combine(ErrOracleFailure, err)
	}

	cutout, err := p.compositor.Composite(mask, crop, region)
	if err != nil {
		return nil, nil, multierr.Combine(ErrOracleFailure, err)
	}
	defer cutout.Close()

	if p.opts.Debug {
		dumpErr = multierr.Combine(dumpErr,
			p.dumpMask(key+"_2_refined.png", mask, 85),
			p.dumpMask(key+"_3_final.png", cutout.Mask, 1))
	}

	artifact := key + ".png"
	p.persist(ctx, artifact, cutout.Image)

	result := &model.CutResult{
		Key:       key,
		SessionID: job.sessionID,
		Region: model.BBox{
			X:      region.Min.X,
			Y:      region.Min.Y,
			Width:  region.Dx(),
			Height: region.Dy(),
		},
		Outline:      toModelPoints(cutout.Outline),
		OpaquePixels: cutout.OpaquePixels,
		Artifact:     artifact,
		DurationMS:   time.Since(startTime).Milliseconds(),
		Timestamp:    time.Now().Unix(),
	}

	if p.results != nil {
		if err := p.results.SetCutResult(ctx, key, result); err != nil {
			p.logger.Warn("failed to store cut result", zap.String("key", key), zap.Error(err))
		}
	}
	if dumpErr != nil {
		p.logger.Warn("failed to write debug masks", zap.String("key", key), zap.Error(dumpErr))
	}

	p.logger.Info("cut finished",
		zap.String("session", job.sessionID),
		zap.String("key", key),
		zap.Stringer("region", region),
		zap.Int("outline_points", len(cutout.Outline)),
		zap.Int("opaque_pixels", cutout.OpaquePixels),
		zap.Duration("duration", time.Since(startTime)))

	return result, cutout.Outline, nil
}

// persist 写入所有存储，失败只记录日志
func (p *Pipeline) persist(ctx context.Context, name string, img gocv.Mat) {
	data, err := EncodePNG(img)
	if err != nil {
		p.logger.Error("failed to encode cutout", zap.String("artifact", name), zap.Error(err))
		return
	}

	var errs error
	for _, store := range p.stores {
		errs = multierr.Append(errs, store.Save(ctx, name, data))
	}
	if errs != nil {
		p.logger.Warn("failed to persist cutout",
			zap.String("artifact", name),
			zap.Errors("errors", multierr.Errors(errs)))
	}
}

// dumpMask 把掩码乘以 scale 后写成图片，便于肉眼查看
func (p *Pipeline) dumpMask(name string, mask gocv.Mat, scale float32) error {
	if err := os.MkdirAll(p.opts.DebugDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(p.opts.DebugDir, name)

	vis := gocv.NewMat()
	defer vis.Close()
	mask.ConvertToWithParams(&vis, gocv.MatTypeCV8U, scale, 0)
	if !gocv.IMWrite(path, vis) {
		return errors.Errorf("failed to write %s", path)
	}
	return nil
}

// EncodePNG 编码为PNG，保留 alpha 通道
func EncodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	defer buf.Close()

	data := buf.GetBytes()
	return append([]byte(nil), data...), nil
}

func toModelPoints(points []image.Point) []model.Point {
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

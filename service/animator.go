package service

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fogleman/gg"
	"go.uber.org/atomic"

	"github.com/TIANLI0/StrokeCut/config"
)

// AnimationState 蚂蚁线动画状态
type AnimationState int

const (
	Idle AnimationState = iota
	Animating
)

func (s AnimationState) String() string {
	switch s {
	case Animating:
		return "animating"
	default:
		return "idle"
	}
}

type AnimatorOptions struct {
	TickInterval time.Duration
	DashLength   float64
	PhaseRate    float64
	StrokeWidth  float64
}

func AnimatorOptionsFromConfig(cfg *config.AnimatorConfig) AnimatorOptions {
	return AnimatorOptions{
		TickInterval: cfg.TickInterval,
		DashLength:   cfg.DashLength,
		PhaseRate:    cfg.PhaseRate,
		StrokeWidth:  cfg.StrokeWidth,
	}
}

// publication 一次发布的轮廓，除相位外发布后不再修改
type publication struct {
	outline []image.Point
	canvas  image.Point
	since   time.Time
	// phase 只随这次发布单调增加
	phase atomic.Float64
}

type frame struct {
	img    image.Image
	source *publication
}

// Animator 选区蚂蚁线。抠图流水线写入轮廓，渲染循环读取，两者之间只通过
// 原子替换的引用交换数据。
type Animator struct {
	opts  AnimatorOptions
	clock clock.Clock

	canvas  atomic.Pointer[image.Point]
	current atomic.Pointer[publication]
	latest  atomic.Pointer[frame]
}

func NewAnimator(opts AnimatorOptions, clk clock.Clock) *Animator {
	if clk == nil {
		clk = clock.New()
	}
	return &Animator{opts: opts, clock: clk}
}

// Resize 设置画布大小，通常为工作照片的尺寸
func (a *Animator) Resize(size image.Point) {
	a.canvas.Store(&size)
}

// Publish 发布新轮廓；空轮廓使动画回到 Idle
func (a *Animator) Publish(outline []image.Point) {
	if len(outline) == 0 {
		a.Clear()
		return
	}

	pub := &publication{
		outline: append([]image.Point(nil), outline...),
		canvas:  a.canvasFor(outline),
		since:   a.clock.Now(),
	}
	a.current.Store(pub)
}

func (a *Animator) Clear() {
	a.current.Store(nil)
	a.latest.Store(nil)
}

func (a *Animator) State() AnimationState {
	if a.current.Load() == nil {
		return Idle
	}
	return Animating
}

// Phase 当前发布的相位，Idle 时为 0
func (a *Animator) Phase() float64 {
	pub := a.current.Load()
	if pub == nil {
		return 0
	}
	return pub.phase.Load()
}

// Outline 当前发布的轮廓
func (a *Animator) Outline() []image.Point {
	pub := a.current.Load()
	if pub == nil {
		return nil
	}
	return append([]image.Point(nil), pub.outline...)
}

// Frame 最近渲染的一帧，Idle 时为 nil
func (a *Animator) Frame() image.Image {
	f := a.latest.Load()
	if f == nil || f.source != a.current.Load() {
		return nil
	}
	return f.img
}

// Tick 按经过的时间推进相位并重绘一帧
func (a *Animator) Tick() {
	pub := a.current.Load()
	if pub == nil {
		return
	}
	a.advance(pub)
}

// advance 推进 pub 自身的相位；pub 已被替换时结果不会被 Frame 返回
func (a *Animator) advance(pub *publication) {
	phase := a.opts.PhaseRate * a.clock.Since(pub.since).Seconds()
	for {
		last := pub.phase.Load()
		if phase <= last {
			phase = last
			break
		}
		if pub.phase.CompareAndSwap(last, phase) {
			break
		}
	}
	a.latest.Store(&frame{img: a.render(pub, phase), source: pub})
}

// Run 以固定间隔驱动 Tick，直到 ctx 结束
func (a *Animator) Run(ctx context.Context) {
	ticker := a.clock.Ticker(a.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick()
		}
	}
}

// render 两条互补虚线：深色在 phase，浅色错开半个周期
func (a *Animator) render(pub *publication, phase float64) image.Image {
	dc := gg.NewContext(pub.canvas.X, pub.canvas.Y)
	dc.SetLineWidth(a.opts.StrokeWidth)
	dc.SetLineCap(gg.LineCapButt)
	half := a.opts.DashLength / 2
	dc.SetDash(half, half)

	a.strokeOutline(dc, pub.outline, phase, color.Black)
	a.strokeOutline(dc, pub.outline, phase+half, color.White)

	return dc.Image()
}

func (a *Animator) strokeOutline(dc *gg.Context, outline []image.Point, offset float64, c color.Color) {
	dc.MoveTo(float64(outline[0].X), float64(outline[0].Y))
	for _, p := range outline[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	dc.ClosePath()
	dc.SetDashOffset(offset)
	dc.SetColor(c)
	dc.Stroke()
}

func (a *Animator) canvasFor(outline []image.Point) image.Point {
	if size := a.canvas.Load(); size != nil && size.X > 0 && size.Y > 0 {
		return *size
	}
	var extent image.Point
	for _, p := range outline {
		extent.X = max(extent.X, p.X+1)
		extent.Y = max(extent.Y, p.Y+1)
	}
	return extent
}

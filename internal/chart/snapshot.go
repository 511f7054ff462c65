package chart

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Snapshotter 用 headless chrome 把图表 HTML 截图成 PNG。
type Snapshotter struct {
	Width    int
	Height   int
	Timeout  time.Duration
	Headless bool

	mu    sync.Mutex
	ready bool
	probe func(context.Context) error
}

func NewSnapshotter(width, height int, timeout time.Duration, headless bool) *Snapshotter {
	if width <= 0 {
		width = defaultWidthPx
	}
	if height <= 0 {
		height = defaultHeightPx
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &Snapshotter{Width: width, Height: height, Timeout: timeout, Headless: headless}
	s.probe = s.launch
	return s
}

func (s *Snapshotter) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	options := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", s.Headless))
	return chromedp.NewExecAllocator(ctx, options...)
}

// Available 检查本机能否启动 chrome。只缓存成功结果，失败会在下次调用时重试。
func (s *Snapshotter) Available(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	probe := s.probe
	if probe == nil {
		probe = s.launch
	}
	// 不继承请求的取消，避免一次中断的请求被当作 chrome 不可用
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	if err := probe(pctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *Snapshotter) launch(ctx context.Context) error {
	actx, cancelAlloc := s.allocator(ctx)
	defer cancelAlloc()
	cctx, cancel := chromedp.NewContext(actx)
	defer cancel()
	return chromedp.Run(cctx)
}

// PNG 渲染 html 并截取整页。
func (s *Snapshotter) PNG(ctx context.Context, html []byte) ([]byte, error) {
	if err := s.Available(ctx); err != nil {
		return nil, fmt.Errorf("headless chrome unavailable: %w", err)
	}
	actx, cancelAlloc := s.allocator(ctx)
	defer cancelAlloc()
	parent, cancel := chromedp.NewContext(actx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, s.Timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(s.Width), int64(s.Height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}

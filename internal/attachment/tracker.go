// Package attachment 도형에 딸린 업로드 추적.
// 업로드는 백그라운드에서 진행되고 도형에는 {uploading, progress, url}만 기록된다.
// 인터랙션 상태 머신은 업로드를 기다리지 않는다.
package attachment

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"coaching-backend/internal/model"
)

var ErrNoUploader = errors.New("attachment: no uploader configured")

// File 업로드 대기 중인 첨부 파일
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Uploader 파일 업로드 후 공개 URL 반환 (진행률 [0,1] 보고)
type Uploader interface {
	Upload(ctx context.Context, boardID int64, f File, onProgress func(float64)) (string, error)
}

// ShapePatcher 도형에 업로드 상태 기록 (그 사이 삭제된 도형이면 no-op)
type ShapePatcher interface {
	Patch(ctx context.Context, id string, fn func(*model.Shape)) (bool, error)
}

// 문서에 쓸 최소 진행률 변화량
const progressStep = 0.05

// Tracker 업로드 실행 및 상태를 도형에 반영
type Tracker struct {
	uploader Uploader
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewTracker Tracker 생성 (uploader가 nil이면 Start는 ErrNoUploader 반환)
func NewTracker(uploader Uploader, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Tracker{uploader: uploader, timeout: timeout}
}

// Start 도형을 업로드 중으로 표시하고 백그라운드 업로드 시작
// 업로드 중이나 실패 후에도 previewURL은 유지
func (t *Tracker) Start(ctx context.Context, shapes ShapePatcher, boardID int64, shapeID string, f File, previewURL string) error {
	return t.StartThen(ctx, shapes, boardID, shapeID, f, previewURL, nil)
}

// StartThen 완료 훅이 있는 Start
// nil을 반환하면 도형이 최종 상태에 도달한 뒤 done이 정확히 한 번 실행된다
func (t *Tracker) StartThen(ctx context.Context, shapes ShapePatcher, boardID int64, shapeID string, f File, previewURL string, done func()) error {
	if t.uploader == nil {
		return ErrNoUploader
	}
	if done == nil {
		done = func() {}
	}

	ok, err := shapes.Patch(ctx, shapeID, func(s *model.Shape) {
		s.Uploading = true
		s.Progress = 0
		if previewURL != "" {
			s.PreviewURL = previewURL
		}
	})
	if err != nil {
		return err
	}
	if !ok {
		closeBody(f)
		done()
		return nil
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer done()
		defer closeBody(f)

		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		last := 0.0
		onProgress := func(p float64) {
			if p < 1 && p-last < progressStep {
				return
			}
			last = p
			if _, err := shapes.Patch(uctx, shapeID, func(s *model.Shape) { s.Progress = p }); err != nil {
				log.Printf("[Attachment] progress for shape %s not saved: %v", shapeID, err)
			}
		}

		url, err := t.uploader.Upload(uctx, boardID, f, onProgress)
		if err != nil {
			// 재시도 없음 (미리보기 유지, 사용자가 다시 시도)
			log.Printf("[Attachment] upload for shape %s failed: %v", shapeID, err)
			if _, err := shapes.Patch(uctx, shapeID, func(s *model.Shape) { s.Uploading = false }); err != nil {
				log.Printf("[Attachment] failure state for shape %s not saved: %v", shapeID, err)
			}
			return
		}

		_, err = shapes.Patch(uctx, shapeID, func(s *model.Shape) {
			s.URL = url
			s.Progress = 1
			s.Uploading = false
		})
		if err != nil {
			log.Printf("[Attachment] url for shape %s not saved: %v", shapeID, err)
		}
	}()
	return nil
}

// Wait 진행 중인 업로드가 모두 끝날 때까지 대기
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func closeBody(f File) {
	if c, ok := f.Body.(io.Closer); ok {
		c.Close()
	}
}

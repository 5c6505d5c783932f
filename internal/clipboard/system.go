package clipboard

import (
	"context"

	"github.com/atotto/clipboard"
)

// System OS 클립보드 사용 (캔버스 페이로드가 아닌 텍스트는 nil)
type System struct{}

func (System) Write(ctx context.Context, p Payload) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	return clipboard.WriteAll(string(data))
}

func (System) Read(ctx context.Context) (*Payload, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return decode([]byte(text)), nil
}

// SystemAvailable OS 클립보드 사용 가능 여부
func SystemAvailable() bool {
	return !clipboard.Unsupported
}

package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"coaching-backend/internal/attachment"
	"coaching-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Service 도형 첨부 파일 업로드 서비스
type S3Service struct {
	client        *s3.Client
	presign       *s3.PresignClient
	bucket        string
	region        string
	publicBaseURL string
	presignExpiry time.Duration
}

// PresignedUpload 클라이언트 직접 업로드용 URL
type PresignedUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewS3Service S3Service 생성
func NewS3Service(cfg *config.S3Config) (*S3Service, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		}
	})

	log.Printf("[S3] Using bucket %s (%s)", cfg.BucketName, cfg.Region)
	return &S3Service{
		client:        client,
		presign:       s3.NewPresignClient(client),
		bucket:        cfg.BucketName,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignExpiry: cfg.PresignExpiry,
	}, nil
}

// ObjectKey 보드 첨부 파일의 S3 키
func ObjectKey(boardID int64, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("boards/%d/%s%s", boardID, uuid.NewString(), ext)
}

// GetPublicURL 객체의 공개 URL
func (s *S3Service) GetPublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// GenerateUploadURL 업로드용 Presigned URL 생성
func (s *S3Service) GenerateUploadURL(boardID int64, fileName, contentType string) (*PresignedUpload, error) {
	key := ObjectKey(boardID, fileName)
	req, err := s.presign.PresignPutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{URL: req.URL, Key: key, ExpiresAt: time.Now().Add(s.presignExpiry)}, nil
}

// Upload 서버 경유 업로드. 진행률은 0..1로 보고된다
func (s *S3Service) Upload(ctx context.Context, boardID int64, f attachment.File, onProgress func(float64)) (string, error) {
	key := ObjectKey(boardID, f.Name)
	body := &progressReader{rs: f.Body, total: f.Size, onProgress: onProgress}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(f.Size),
		ContentType:   aws.String(f.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.GetPublicURL(key), nil
}

// progressReader 읽은 바이트 비율을 보고하는 ReadSeeker
type progressReader struct {
	rs         io.ReadSeeker
	total      int64
	read       int64
	onProgress func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.rs.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 && n > 0 {
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.onProgress(frac)
	}
	return n, err
}

// Seek SDK가 체크섬 계산 후 되감을 때 진행률도 함께 되돌린다
func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.rs.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}

// Package objectstore implements the ObjectStore plugin adapter. It keeps a
// JSON manifest per service in an S3-compatible bucket that the backup
// storage side reads to provision, suspend and purge datastores.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alfredjeanlab/svcbackup/internal/plugin"
)

// Name is the registry name of this adapter.
const Name = "ObjectStore"

func init() {
	plugin.Register(Name, New)
}

// Manifest status values.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCanceled  = "canceled"
)

// ObjectAPI is the subset of the S3 client the adapter uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Manifest is the object written for each service.
type Manifest struct {
	ServiceID  string         `json:"service_id"`
	ClientID   any            `json:"client_id"`
	OrderID    any            `json:"order_id,omitempty"`
	Status     string         `json:"status"`
	Config     map[string]any `json:"config,omitempty"`
	LastAction string         `json:"last_action"`
	LastCallID string         `json:"last_call_id"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Adapter maintains service manifests.
//
// Config keys: bucket (required), prefix (default "services/"), region
// (default "us-east-1"), endpoint (custom endpoint, enables path-style).
type Adapter struct {
	plugin.Methods

	api    ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New builds an adapter with a real S3 client.
func New(ctx context.Context, cfg map[string]any) (plugin.Adapter, error) {
	bucket := plugin.String(cfg, "bucket", "")
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(plugin.String(cfg, "region", "us-east-1")))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint := plugin.String(cfg, "endpoint", ""); endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3opts...), bucket, plugin.String(cfg, "prefix", "services/")), nil
}

// NewWithClient builds an adapter around an existing client.
func NewWithClient(api ObjectAPI, bucket, prefix string) *Adapter {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	a := &Adapter{api: api, bucket: bucket, prefix: prefix, now: time.Now}
	a.Methods = plugin.Methods{
		plugin.MethodActivate:  a.setStatus(StatusActive),
		plugin.MethodRenew:     a.setStatus(StatusActive),
		plugin.MethodUnsuspend: a.setStatus(StatusActive),
		plugin.MethodUncancel:  a.setStatus(StatusActive),
		plugin.MethodSuspend:   a.setStatus(StatusSuspended),
		plugin.MethodCancel:    a.setStatus(StatusCanceled),
		plugin.MethodDelete:    a.remove,
		"status":               a.status,
	}
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) key(call *plugin.Call) (string, error) {
	id, ok := call.Service["id"]
	if !ok || id == nil {
		return "", errors.New("service id missing from call")
	}
	return fmt.Sprintf("%s%v/manifest.json", a.prefix, id), nil
}

func (a *Adapter) setStatus(status string) plugin.Method {
	return func(ctx context.Context, call *plugin.Call) (any, error) {
		key, err := a.key(call)
		if err != nil {
			return nil, err
		}
		m := Manifest{
			ServiceID:  fmt.Sprint(call.Service["id"]),
			ClientID:   call.Service["client_id"],
			OrderID:    call.Order["id"],
			Status:     status,
			Config:     withoutMeta(call.Service),
			LastAction: call.Method,
			LastCallID: call.ID,
			UpdatedAt:  a.now().UTC(),
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal manifest: %w", err)
		}
		contentType := "application/json"
		_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: &contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 put object: %w", err)
		}
		return m, nil
	}
}

func (a *Adapter) remove(ctx context.Context, call *plugin.Call) (any, error) {
	key, err := a.key(call)
	if err != nil {
		return nil, err
	}
	if _, err := a.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("s3 delete object: %w", err)
	}
	return true, nil
}

func (a *Adapter) status(ctx context.Context, call *plugin.Call) (any, error) {
	key, err := a.key(call)
	if err != nil {
		return nil, err
	}
	out, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("no manifest for service %v", call.Service["id"])
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// withoutMeta strips the bookkeeping keys the service layer adds to the
// API map, leaving the admin-managed config.
func withoutMeta(svc map[string]any) map[string]any {
	out := make(map[string]any, len(svc))
	for k, v := range svc {
		switch k {
		case "id", "client_id", "created_at", "updated_at":
			continue
		}
		out[k] = v
	}
	return out
}

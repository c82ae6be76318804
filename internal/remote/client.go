package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"HarmonyCare/pkg/errors"
	"HarmonyCare/pkg/metrics"
)

// Client 远端协调服务器的同步客户端。
// 远端是可选的：所有失败都折叠成 TransientIO，由调用方决定降级还是排队。
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration // 默认 7s
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// 远端线格式，蛇形命名
type emergencyPayload struct {
	ElderlyID   uint    `json:"elderly_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timestamp   int64   `json:"timestamp"`
	Status      string  `json:"status"`
}

type createResponse struct {
	ID json.Number `json:"id"`
}

// RemoteEmergency 远端返回的求助记录。ID 是数字，留成 json.Number 避免精度问题
type RemoteEmergency struct {
	ID          json.Number `json:"id"`
	ElderlyID   uint        `json:"elderly_id"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Timestamp   int64       `json:"timestamp"`
	Status      string      `json:"status"`
	VolunteerID *uint       `json:"volunteer_id,omitempty"`
}

type updatePayload struct {
	Status      string `json:"status"`
	VolunteerID *uint  `json:"volunteer_id,omitempty"`
}

// Probe 探测远端是否可达（GET /api/health）
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("remote health probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// CreateEmergency 上报新求助，返回远端分配的ID
func (c *Client) CreateEmergency(ctx context.Context, elderlyID uint, latitude, longitude float64, timestamp int64, status string) (string, error) {
	body := emergencyPayload{
		ElderlyID: elderlyID,
		Latitude:  latitude,
		Longitude: longitude,
		Timestamp: timestamp,
		Status:    status,
	}
	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/api/emergencies", body, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.ID.String(), nil
}

// ListActive 拉取远端的活跃求助列表（志愿者视角）
func (c *Client) ListActive(ctx context.Context, volunteerID uint) ([]RemoteEmergency, error) {
	path := "/api/emergencies/active"
	if volunteerID != 0 {
		path += "?volunteer_id=" + url.QueryEscape(strconv.FormatUint(uint64(volunteerID), 10))
	}
	var out []RemoteEmergency
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus 上报状态变更（PUT /api/emergencies/:id）
func (c *Client) UpdateStatus(ctx context.Context, remoteID, status string, volunteerID *uint) error {
	body := updatePayload{Status: status, VolunteerID: volunteerID}
	return c.do(ctx, http.MethodPut, "/api/emergencies/"+url.PathEscape(remoteID), body, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeValidation, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CodeTransientIO, "failed to build remote request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteSyncFailures.Inc()
		c.logger.WithError(err).WithField("path", path).Warn("remote request failed")
		return errors.Wrapf(err, errors.CodeTransientIO, "remote %s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		metrics.RemoteSyncFailures.Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("remote returned unexpected status")
		return errors.WithCodef(errors.CodeTransientIO, "remote %s %s: status %d: %s",
			method, path, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			metrics.RemoteSyncFailures.Inc()
			return errors.Wrap(err, errors.CodeTransientIO, fmt.Sprintf("failed to decode remote %s response", path))
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

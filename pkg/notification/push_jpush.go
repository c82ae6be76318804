package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const jpushURL = "https://api.jpush.cn/v3/push"

type JPushConfig struct {
	AppKey       string
	MasterSecret string
}

// JPush 推送适配器，按用户别名（alias = 用户ID）投递
type JPush struct {
	cfg    JPushConfig
	client *http.Client
	logger *logrus.Logger
}

func NewJPush(cfg JPushConfig, logger *logrus.Logger) *JPush {
	return &JPush{
		cfg:    cfg,
		client: &http.Client{Timeout: 8 * time.Second},
		logger: logger,
	}
}

func (j *JPush) Notify(ctx context.Context, kind, title, body string, targetUserID uint) error {
	payload := map[string]interface{}{
		"platform": "all",
		"audience": map[string]interface{}{
			"alias": []string{strconv.FormatUint(uint64(targetUserID), 10)},
		},
		"notification": map[string]interface{}{
			"alert": body,
			"android": map[string]interface{}{
				"alert":  body,
				"title":  title,
				"extras": map[string]string{"type": kind},
			},
		},
		"options": map[string]interface{}{
			"time_to_live": 60,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", jpushURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(j.cfg.AppKey + ":" + j.cfg.MasterSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		j.logger.Warnf("jpush returned status %d for user %d", resp.StatusCode, targetUserID)
		return fmt.Errorf("jpush error: status %d", resp.StatusCode)
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"goodies-platform/internal/domain/settings"
)

const (
	SettingsKey     = "settings:runtime"
	SettingsChannel = "channel:settings"
)

// SettingsStore keeps runtime settings in one key and announces every
// change on a channel so other instances refresh.
type SettingsStore struct {
	client *goredis.Client
}

func NewSettingsStore(client *goredis.Client) *SettingsStore {
	return &SettingsStore{client: client}
}

func (s *SettingsStore) Load(ctx context.Context) (settings.Runtime, bool, error) {
	data, err := s.client.Get(ctx, SettingsKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return settings.Runtime{}, false, nil
	}
	if err != nil {
		return settings.Runtime{}, false, err
	}
	var out settings.Runtime
	if err := json.Unmarshal(data, &out); err != nil {
		return settings.Runtime{}, false, err
	}
	return out, true, nil
}

func (s *SettingsStore) Save(ctx context.Context, rt settings.Runtime) error {
	data, err := json.Marshal(rt)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, SettingsKey, data, 0)
		pipe.Publish(ctx, SettingsChannel, data)
		return nil
	})
	return err
}

func (s *SettingsStore) Watch(ctx context.Context, fn func(settings.Runtime)) error {
	sub := s.client.Subscribe(ctx, SettingsChannel)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var rt settings.Runtime
		if err := json.Unmarshal([]byte(msg.Payload), &rt); err != nil {
			continue
		}
		fn(rt)
	}
}

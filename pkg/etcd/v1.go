package etcd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type V1 struct {
	conn               *clientv3.Client
	basePath           string
	appName            string
	WatchPathCallbacks map[string][]func() error
	mu                 sync.Mutex
}

func newV1Etcd(appName, basePath string) Etcd {
	if appName == "" || envEtcdServer == "" {
		log.Panic().Msg("APP_NAME or ETCD_SERVER is not set")
	}
	if basePath == "" {
		basePath = configPath + appName
	}
	servers := strings.Split(envEtcdServer, ",")

	conn, err := clientv3.New(clientv3.Config{Endpoints: servers, Username: envEtcdUsername, Password: envEtcdPassword, DialTimeout: timeout, DialKeepAliveTime: timeout, PermitWithoutStream: true})
	if err != nil {
		log.Panic().Err(err).Msg("failed to create etcd client")
	}
	v1Etcd := &V1{
		conn:               conn,
		basePath:           basePath,
		appName:            appName,
		WatchPathCallbacks: make(map[string][]func() error),
	}
	if envWatcherEnabled {
		v1Etcd.WatchPrefix(context.Background(), basePath)
	}
	return v1Etcd
}

// GetValue returns the value stored at the given path relative to the base path.
func (v *V1) GetValue(path string) (string, error) {
	absolutePath := v.basePath + path
	response, err := v.conn.Get(context.Background(), absolutePath)
	if err != nil {
		log.Error().Err(err).Msgf("failed to get value at node %s", absolutePath)
		return "", err
	}
	if len(response.Kvs) == 0 {
		return "", fmt.Errorf("no value at %s", absolutePath)
	}
	return string(response.Kvs[0].Value), nil
}

// GetTree returns all leaf values under the given path relative to the base path,
// keyed by the remainder of the node path.
func (v *V1) GetTree(path string) (map[string]string, error) {
	absolutePath := v.basePath + path
	response, err := v.conn.Get(context.Background(), absolutePath, clientv3.WithPrefix())
	if err != nil {
		log.Error().Err(err).Msgf("failed to get tree at node %s", absolutePath)
		return nil, err
	}
	tree := make(map[string]string, len(response.Kvs))
	for _, kv := range response.Kvs {
		nodePath := string(kv.Key)
		if nodePath == absolutePath || len(kv.Value) == 0 {
			continue
		}
		key := strings.TrimPrefix(strings.TrimPrefix(nodePath, absolutePath), "/")
		tree[key] = string(kv.Value)
	}
	return tree, nil
}

func (v *V1) WatchPrefix(ctx context.Context, prefix string) {
	watchChan := v.conn.Watch(ctx, prefix, clientv3.WithPrefix())
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Msgf("panic in watch prefix: %v", r)
					}
				}()
				for watchResp := range watchChan {
					for _, event := range watchResp.Events {
						v.runWatchCallbacks(prefix, string(event.Kv.Key))
					}
				}
			}()

			//Avoid frequent restarts on panics
			time.Sleep(5 * time.Second)
		}
	}()
}

func (v *V1) runWatchCallbacks(prefix, eventKey string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, functions := range v.WatchPathCallbacks {
		watchPath := prefix + key
		if strings.HasPrefix(eventKey, watchPath) {
			for _, callback := range functions {
				if err := callback(); err != nil {
					log.Error().Err(err).Msgf("unable to execute the function for path %s", key)
				}
			}
		}
	}
}

func (v *V1) SetValue(path string, value interface{}) error {
	_, err := v.conn.Put(context.Background(), v.basePath+path, fmt.Sprintf("%v", value))
	if err != nil {
		log.Error().Err(err).Msgf("failed to set value at node %s", path)
		return err
	}
	return nil
}

// SetValues sets the values at the given paths
func (v *V1) SetValues(paths map[string]interface{}) error {
	for path, value := range paths {
		err := v.SetValue(path, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateNode creates a node at the given path with the given value
func (v *V1) CreateNode(path string, value interface{}) error {
	exists, err := v.IsNodeExist(path)
	if exists || err != nil {
		log.Error().Err(err).Msgf("node already exist for %s, not creating new node", path)
		return fmt.Errorf("node already exist for %s: %w", path, err)
	}
	_, err = v.conn.Put(context.Background(), v.basePath+path, fmt.Sprintf("%v", value))
	if err != nil {
		log.Error().Err(err).Msgf("failed to create node %s", path)
		return err
	}
	return nil
}

// CreateNodes creates nodes at the given paths with the given values
func (v *V1) CreateNodes(paths map[string]interface{}) error {
	for path, value := range paths {
		err := v.CreateNode(path, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// IsNodeExist checks if a node exists at the given path
func (v *V1) IsNodeExist(path string) (bool, error) {
	response, err := v.conn.Get(context.Background(), v.basePath+path, clientv3.WithPrefix())
	if err != nil {
		return false, err
	}
	return len(response.Kvs) > 0, nil
}

// DeleteNode deletes the node at the given path along with its children
func (v *V1) DeleteNode(path string) error {
	_, err := v.conn.Delete(context.Background(), v.basePath+path, clientv3.WithPrefix())
	if err != nil {
		log.Error().Err(err).Msgf("failed to delete node %s", path)
		return err
	}
	return nil
}

// RegisterWatchPathCallback registers a callback function to be called when a change is detected in the given path
func (v *V1) RegisterWatchPathCallback(path string, callback func() error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.WatchPathCallbacks[path] = append(v.WatchPathCallbacks[path], callback)
	return nil
}

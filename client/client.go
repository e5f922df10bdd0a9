// Package client talks to the http api of garden-mqtt.
package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cmodk/go-simplehttp"
	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

type Client struct {
	*simplehttp.SimpleHttp
}

func New(host string, api_key string, logger *logrus.Logger) *Client {
	backend := simplehttp.New(host, logger)
	if api_key != "" {
		backend.SetBearerAuth(api_key)
	}

	return &Client{&backend}
}

type PresenceSnapshot struct {
	Serial string `json:"serial"`
	Online bool   `json:"online"`
}

func (client *Client) post(path string, body interface{}) (*garden.CommandRecord, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(path, string(data))
	if err != nil {
		return nil, err
	}

	var record garden.CommandRecord
	if err := json.Unmarshal([]byte(resp), &record); err != nil {
		return nil, fmt.Errorf("decoding command record: %w", err)
	}

	return &record, nil
}

func (client *Client) SendCommand(garden_id uint64, channel string, action bool) (*garden.CommandRecord, error) {
	return client.post(fmt.Sprintf("/garden/%d/command", garden_id), map[string]interface{}{
		"channel": channel,
		"action":  action,
	})
}

func (client *Client) TakePhoto(garden_id uint64) (*garden.CommandRecord, error) {
	return client.post(fmt.Sprintf("/garden/%d/camera/photo", garden_id), struct{}{})
}

func (client *Client) SetStream(garden_id uint64, enable bool) (*garden.CommandRecord, error) {
	return client.post(fmt.Sprintf("/garden/%d/camera/stream", garden_id), map[string]bool{"enable": enable})
}

// Commands lists the newest command records of a garden. An empty channel
// matches all channels.
func (client *Client) Commands(garden_id uint64, channel string, limit int) ([]garden.CommandRecord, error) {
	query := url.Values{}
	if channel != "" {
		query.Set("channel", channel)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/garden/%d/commands", garden_id)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	data, err := client.Get(path)
	if err != nil {
		return nil, err
	}

	var commands []garden.CommandRecord
	if err := json.Unmarshal([]byte(data), &commands); err != nil {
		return nil, err
	}

	return commands, nil
}

func (client *Client) Online(serial string) (*PresenceSnapshot, error) {
	data, err := client.Get(fmt.Sprintf("/device/%s/online", url.PathEscape(serial)))
	if err != nil {
		return nil, err
	}

	var snapshot PresenceSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

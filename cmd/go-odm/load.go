package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// randomUser generates a user with a random 8 letter name
func randomUser(rng *rand.Rand) map[string]interface{} {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 8)
	for i := range name {
		name[i] = letters[rng.Intn(len(letters))]
	}
	return map[string]interface{}{
		"username": string(name),
		"email":    fmt.Sprintf("%s@example.com", name),
		"age":      rng.Intn(82) + 18,
		"password": strings.ToUpper(string(name)),
	}
}

// post sends users to the single or the batch insert endpoint
func post(client *http.Client, baseURL string, users []map[string]interface{}) error {
	path, payload := "/users", interface{}(users[0])
	if len(users) > 1 {
		path, payload = "/users/batch", users
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	resp, err := client.Post(strings.TrimRight(baseURL, "/")+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, apiErr.Message)
	}
	return nil
}

func cmdLoad(cmd *cobra.Command, args []string) error {
	_, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	numUsers, err := strconv.Atoi(args[0])
	if err != nil || numUsers <= 0 {
		return Error.New("invalid number of users %q", args[0])
	}
	batchSize := loadCfg.batchSize
	if batchSize < 1 {
		batchSize = 1
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := &http.Client{Timeout: 30 * time.Second}
	logger.Info("starting load", zap.Int("users", numUsers), zap.String("url", loadCfg.url), zap.Int("batch_size", batchSize))

	// Track timing and statistics
	startTime := time.Now()
	successCount, errorCount := 0, 0
	reportInterval := max(1, numUsers/10)
	nextReport := reportInterval

	for sent := 0; sent < numUsers; {
		n := min(batchSize, numUsers-sent)
		batch := make([]map[string]interface{}, n)
		for i := range batch {
			batch[i] = randomUser(rng)
		}

		if err := post(client, loadCfg.url, batch); err != nil {
			errorCount += n
			logger.Warn("insert failed", zap.Int("users", n), zap.Error(err))
		} else {
			successCount += n
		}
		sent += n

		// Report progress
		if sent >= nextReport || sent == numUsers {
			elapsed := time.Since(startTime)
			logger.Info("progress",
				zap.Int("sent", sent),
				zap.Int("total", numUsers),
				zap.Float64("users_per_sec", float64(sent)/elapsed.Seconds()),
				zap.Int("succeeded", successCount),
				zap.Int("failed", errorCount))
			nextReport += reportInterval
		}
	}

	totalTime := time.Since(startTime)
	logger.Info("load complete",
		zap.Int("succeeded", successCount),
		zap.Int("failed", errorCount),
		zap.Duration("elapsed", totalTime),
		zap.Duration("per_user", totalTime/time.Duration(numUsers)))

	if errorCount > 0 {
		return Error.New("%d of %d inserts failed", errorCount, numUsers)
	}
	return nil
}

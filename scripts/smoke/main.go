package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type step struct {
	Name     string
	Critical bool
	Run      func(*session) error
}

type result struct {
	Step     step
	Status   int
	Duration time.Duration
	Error    error
}

type session struct {
	client      *http.Client
	base        string
	accessToken string
	employeeID  string
	lastStatus  int
}

func main() {
	var (
		base     string
		email    string
		password string
		anchor   string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&email, "email", "admin@rota.local", "login email")
	flag.StringVar(&password, "password", "admin123", "login password")
	flag.StringVar(&anchor, "anchor", time.Now().UTC().Format("2006-01-02"), "week anchor for schedule generation")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	s := &session{
		client: &http.Client{Timeout: timeout},
		base:   strings.TrimRight(base, "/"),
	}

	steps := []step{
		{Name: "health", Critical: true, Run: func(s *session) error {
			return s.get("/health", nil)
		}},
		{Name: "ready", Critical: true, Run: func(s *session) error {
			return s.get("/ready", nil)
		}},
		{Name: "login", Critical: true, Run: func(s *session) error {
			var data struct {
				AccessToken string `json:"access_token"`
			}
			err := s.post("/api/v1/auth/login", map[string]string{"email": email, "password": password}, &data)
			if err != nil {
				return err
			}
			if data.AccessToken == "" {
				return fmt.Errorf("login returned no access token")
			}
			s.accessToken = data.AccessToken
			return nil
		}},
		{Name: "put settings", Critical: true, Run: func(s *session) error {
			payload := map[string]interface{}{
				"week_start":     "monday",
				"min_rest_hours": 10,
				"timezone":       "UTC",
				"templates": map[string]interface{}{
					"monday": []map[string]interface{}{
						{"start_hour": 9, "end_hour": 17, "required_staff": 1, "role": map[string]string{"kind": "any"}},
					},
				},
			}
			return s.put("/api/v1/settings", payload, nil)
		}},
		{Name: "create employee", Critical: true, Run: func(s *session) error {
			var data struct {
				ID string `json:"id"`
			}
			payload := map[string]interface{}{
				"name":               "Smoke Tester",
				"max_hours_per_week": 40,
				"availability": map[string]interface{}{
					"monday": []map[string]int{{"start_minute": 480, "end_minute": 1080}},
				},
			}
			if err := s.post("/api/v1/employees", payload, &data); err != nil {
				return err
			}
			if data.ID == "" {
				return fmt.Errorf("create employee returned no id")
			}
			s.employeeID = data.ID
			return nil
		}},
		{Name: "generate schedule", Critical: true, Run: func(s *session) error {
			return s.post("/api/v1/schedules/generate", map[string]string{"week_anchor": anchor}, nil)
		}},
		{Name: "current schedule", Critical: true, Run: func(s *session) error {
			return s.get("/api/v1/schedules/current", nil)
		}},
		{Name: "export csv", Critical: false, Run: func(s *session) error {
			return s.get("/api/v1/schedules/export.csv", nil)
		}},
		{Name: "delete employee", Critical: false, Run: func(s *session) error {
			if s.employeeID == "" {
				return fmt.Errorf("no employee to delete")
			}
			return s.delete("/api/v1/employees/" + s.employeeID)
		}},
	}

	var (
		results  []result
		breaking int
		minor    int
	)
	for _, st := range steps {
		start := time.Now()
		err := st.Run(s)
		res := result{Step: st, Status: s.lastStatus, Duration: time.Since(start), Error: err}
		if err != nil {
			if st.Critical {
				breaking++
			} else {
				minor++
			}
		}
		results = append(results, res)
		if err != nil && st.Critical {
			break
		}
	}

	printReport(results)
	fmt.Printf("Critical failures: %d, Minor failures: %d\n", breaking, minor)
	if breaking > 0 {
		os.Exit(1)
	}
}

func (s *session) get(path string, out interface{}) error {
	return s.do(http.MethodGet, path, nil, out)
}

func (s *session) post(path string, payload, out interface{}) error {
	return s.do(http.MethodPost, path, payload, out)
}

func (s *session) put(path string, payload, out interface{}) error {
	return s.do(http.MethodPut, path, payload, out)
}

func (s *session) delete(path string) error {
	return s.do(http.MethodDelete, path, nil, nil)
}

// do performs one request and decodes the response envelope's data field
// into out when provided. Any status outside 2xx is a failure.
func (s *session) do(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.lastStatus = 0
		return err
	}
	defer resp.Body.Close()
	s.lastStatus = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s\n", status, res.Step.Name)
		fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v | Critical: %t\n", res.Error, res.Step.Critical)
		}
	}
}

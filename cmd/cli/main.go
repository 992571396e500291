package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "login":
		handleLogin(args)
	case "session":
		handleSession(args)
	case "health":
		checkHealth(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleLogin(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bookinglean login <identify|authenticate|reset|run>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "identify":
		identify(args[1:])
	case "authenticate":
		authenticate(args[1:])
	case "reset":
		resetFlow(args[1:])
	case "run":
		runLogin(args[1:])
	default:
		fmt.Printf("unknown login command: %s\n", subCmd)
	}
}

func handleSession(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bookinglean session <who|logout>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "who":
		whoAmI()
	case "logout":
		logout()
	default:
		fmt.Printf("unknown session command: %s\n", subCmd)
	}
}

// Login commands

func identify(args []string) {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	identifier := fs.String("identifier", "", "email or national ID")
	tenant := fs.String("tenant", "", "salon slug")

	fs.Parse(args)

	if *identifier == "" || *tenant == "" {
		fmt.Println("Error: identifier and tenant are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postIdentify(*identifier, *tenant)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Identify failed: %v\n", result)
		return
	}

	fmt.Printf("Stage: %v\n", result["stage"])
	fmt.Printf("Flow:  %v\n", result["flowId"])
	if cand, ok := result["candidate"].(map[string]interface{}); ok {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tIDENTIFIER\tROLE")
		fmt.Fprintf(w, "%v\t%v\t%v\n", cand["displayName"], cand["maskedIdentifier"], cand["role"])
		w.Flush()
	}
}

func authenticate(args []string) {
	fs := flag.NewFlagSet("authenticate", flag.ExitOnError)
	flowID := fs.String("flow", "", "flow ID from identify")
	secret := fs.String("secret", "", "password")

	fs.Parse(args)

	if *flowID == "" || *secret == "" {
		fmt.Println("Error: flow and secret are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postAuthenticate(*flowID, *secret)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Authentication failed: %v\n", result)
		return
	}

	if token, ok := result["token"].(string); ok {
		saveToken(token)
	}
	fmt.Printf("✓ Logged in, continue at %v\n", result["redirectPath"])
}

func resetFlow(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	flowID := fs.String("flow", "", "flow ID from identify")

	fs.Parse(args)

	payload := map[string]string{"flowId": *flowID}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/login/reset", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()
	fmt.Println("✓ Flow reset")
}

// runLogin drives identify and authenticate in one go.
func runLogin(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	identifier := fs.String("identifier", "", "email or national ID")
	tenant := fs.String("tenant", "", "salon slug")
	secret := fs.String("secret", "", "password")

	fs.Parse(args)

	if *identifier == "" || *tenant == "" || *secret == "" {
		fmt.Println("Error: identifier, tenant, and secret are required")
		fs.PrintDefaults()
		return
	}

	idResult, status, err := postIdentify(*identifier, *tenant)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Identify failed: %v\n", idResult)
		return
	}
	if idResult["stage"] != "authenticate" {
		fmt.Printf("No account found; stage is %v\n", idResult["stage"])
		return
	}

	flowID, _ := idResult["flowId"].(string)
	authResult, status, err := postAuthenticate(flowID, *secret)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Authentication failed: %v\n", authResult)
		return
	}

	if token, ok := authResult["token"].(string); ok {
		saveToken(token)
	}
	fmt.Printf("✓ Logged in, continue at %v\n", authResult["redirectPath"])
}

// Session commands

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/session", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		fmt.Println("Session expired; log in again")
		return
	}

	var session map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&session)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tROLE\tTENANT\tEXPIRES")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", session["subjectId"], session["role"], session["tenantId"], session["expiresAt"])
	w.Flush()
}

func logout() {
	token := loadToken()
	if token != "" {
		req, _ := http.NewRequest("POST", getAPIURL()+"/logout", nil)
		addAuthHeader(req)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func checkHealth(args []string) {
	_ = args
	resp, err := http.Get(getBaseURL() + "/readyz")
	if err != nil {
		fmt.Printf("✗ Server unreachable: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		fmt.Println("✓ Server ready")
	} else {
		fmt.Printf("✗ Server not ready (status %d)\n", resp.StatusCode)
		os.Exit(1)
	}
}

// HTTP helpers

func postIdentify(identifier, tenant string) (map[string]interface{}, int, error) {
	payload := map[string]string{"identifier": identifier, "tenantSlug": tenant}
	return postJSON("/login/identify", payload)
}

func postAuthenticate(flowID, secret string) (map[string]interface{}, int, error) {
	payload := map[string]string{"flowId": flowID, "secret": secret}
	return postJSON("/login/authenticate", payload)
}

func postJSON(path string, payload map[string]string) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func getAPIURL() string {
	return getBaseURL() + "/api"
}

func getBaseURL() string {
	if url := os.Getenv("BOOKINGLEAN_API"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.bookinglean/token"
}

func saveToken(token string) error {
	os.MkdirAll(os.Getenv("HOME")+"/.bookinglean", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`BookingLean CLI

Usage:
  bookinglean <command> [options]

Commands:
  login     Login flow (identify, authenticate, reset, run)
  session   Session operations (who, logout)
  health    Check server readiness
  help      Show this help message

Environment Variables:
  BOOKINGLEAN_API    Server base URL (default: http://localhost:8080)

Examples:
  bookinglean login identify -identifier maria@example.com -tenant glow-studio
  bookinglean login run -identifier maria@example.com -tenant glow-studio -secret pass
  bookinglean session who
  bookinglean session logout
`)
}

package main

import (
	"bufio"
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

type action struct {
	Type     string   `json:"type"`
	Chips    []string `json:"chips"`
	Products []struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Price *float64 `json:"price"`
	} `json:"products"`
	Data *struct {
		Products []struct {
			Name  string   `json:"name"`
			Price *float64 `json:"price"`
		} `json:"products"`
	} `json:"data"`
	Variants []struct {
		VariantID string `json:"variant_id"`
		Qty       int    `json:"qty"`
	} `json:"variants"`
	Orders []struct {
		OrderNumber string  `json:"order_number"`
		Total       float64 `json:"total"`
		Status      string  `json:"status"`
	} `json:"orders"`
	Confirm *bool `json:"confirm"`
}

func main() {
	server := flag.String("server", "http://localhost:8000", "Medi-Match server URL")
	user := flag.String("user", "cli-user", "User id sent in the X-User-ID header")
	flag.Parse()

	fmt.Println("Medi-Match CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /history, /cart")
	fmt.Println("---")

	client := &http.Client{Timeout: 65 * time.Second}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		switch input {
		case "/history":
			fetchHistory(client, *server, *user)
		case "/cart":
			fetchCart(client, *server, *user)
		default:
			sendMessage(client, *server, *user, input)
		}
	}
}

func get(client *http.Client, url, user string, v any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", user)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func fetchHistory(client *http.Client, server, user string) {
	var turns []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := get(client, server+"/ai/history", user, &turns); err != nil {
		printError("Failed to fetch history: %v", err)
		return
	}
	if len(turns) == 0 {
		fmt.Println("No conversation yet.")
		return
	}
	for _, t := range turns {
		fmt.Printf("\033[36m[%s]\033[0m %s\n", t.Role, t.Content)
	}
}

func fetchCart(client *http.Client, server, user string) {
	var cart struct {
		Items []struct {
			ProductName string  `json:"product_name"`
			VariantName string  `json:"variant_name"`
			Price       float64 `json:"price"`
			Quantity    int     `json:"quantity"`
		} `json:"items"`
		Total float64 `json:"total"`
	}
	if err := get(client, server+"/api/cart", user, &cart); err != nil {
		printError("Failed to fetch cart: %v", err)
		return
	}
	if len(cart.Items) == 0 {
		fmt.Println("Cart is empty.")
		return
	}
	for _, it := range cart.Items {
		fmt.Printf("  %d x %s (%s) @ %.2f\n", it.Quantity, it.ProductName, it.VariantName, it.Price)
	}
	fmt.Printf("  Total: %.2f\n", cart.Total)
}

func sendMessage(client *http.Client, server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id": user,
		"message": content,
	})
	req, err := http.NewRequest(http.MethodPost, server+"/ai/chat", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)

	resp, err := client.Do(req)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	var msg struct {
		Response string   `json:"response"`
		Actions  []action `json:"actions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		printError("%s", msg.Response)
		return
	}

	fmt.Println(msg.Response)
	for _, a := range msg.Actions {
		printAction(a)
	}
}

func printAction(a action) {
	switch a.Type {
	case "SUGGEST_CHIPS":
		fmt.Printf("  \033[33m[%s]\033[0m\n", strings.Join(a.Chips, "] ["))
	case "SHOW_PRODUCTS":
		for _, p := range a.Products {
			fmt.Printf("  - %s%s\n", p.Title, formatPrice(p.Price))
		}
	case "COMPARE":
		if a.Data != nil {
			for _, p := range a.Data.Products {
				fmt.Printf("  * %s%s\n", p.Name, formatPrice(p.Price))
			}
		}
	case "ADD_TO_CART":
		for _, v := range a.Variants {
			fmt.Printf("  \033[32m+ %d x variant %s\033[0m\n", v.Qty, v.VariantID)
		}
	case "CLEAR_CART":
		fmt.Println("  \033[31m(clear cart: confirm in the storefront)\033[0m")
	case "SHOW_ORDERS":
		for _, o := range a.Orders {
			fmt.Printf("  %s  %.2f  %s\n", o.OrderNumber, o.Total, o.Status)
		}
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("  (%.2f)", *p)
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}

// Command loadtest hammers the hold endpoint with concurrent buyers to
// observe the no-oversell gate under load: with stock S and N buyers asking
// one unit each, exactly S requests should succeed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type result struct {
	status int
	body   string
	err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	name := flag.String("name", "loadtest-sneaker", "product name to create")
	stock := flag.Int("stock", 5, "stock for the test product")
	buyers := flag.Int("buyers", 200, "concurrent buyers")
	concurrency := flag.Int("c", 50, "max in-flight requests")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	productID, err := createProduct(client, *baseURL, *name, *stock)
	if err != nil {
		panic(fmt.Sprintf("create product: %v", err))
	}
	fmt.Printf("product %s created with stock %d\n", productID, *stock)

	fmt.Printf("start oversell test: buyers=%d concurrency=%d\n", *buyers, *concurrency)
	results := runHolds(client, *baseURL, productID, *buyers, *concurrency)
	printSummary(results)

	available, err := getAvailability(client, *baseURL, productID)
	if err != nil {
		fmt.Println("availability check err:", err)
		return
	}
	fmt.Printf("final available_stock: %d (expected 0 when buyers >= stock)\n", available)
}

func runHolds(client *http.Client, baseURL, productID string, buyers, concurrency int) []result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]result, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, _ := json.Marshal(map[string]any{
				"product_id": productID,
				"qty":        1,
			})
			resp, err := client.Post(baseURL+"/holds", "application/json", bytes.NewReader(body))
			if err != nil {
				results[idx] = result{err: err}
				return
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			results[idx] = result{status: resp.StatusCode, body: string(raw)}
		}(i)
	}
	wg.Wait()
	return results
}

func printSummary(results []result) {
	counts := map[int]int{}
	errs := 0
	for _, r := range results {
		if r.err != nil {
			errs++
			continue
		}
		counts[r.status]++
	}
	fmt.Println("status counts:")
	for status, n := range counts {
		fmt.Printf("  %d: %d\n", status, n)
	}
	if errs > 0 {
		fmt.Printf("  transport errors: %d\n", errs)
	}
}

func createProduct(client *http.Client, baseURL, name string, stock int) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"name":        name,
		"price_cents": 9900,
		"stock":       stock,
	})
	resp, err := client.Post(baseURL+"/products", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func getAvailability(client *http.Client, baseURL, productID string) (int, error) {
	resp, err := client.Get(baseURL + "/products/" + productID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var view struct {
		AvailableStock int `json:"available_stock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return 0, err
	}
	return view.AvailableStock, nil
}

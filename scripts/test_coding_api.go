package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{} // No timeout, the coding workflow can take a while
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func main() {
	color.Cyan("🚀 Starting Coding Workflow API Test\n")

	// 1. Health check
	color.Yellow("\n[1] Health Check")
	resp, body, err := sendRequest("GET", "/health", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var healthResp map[string]interface{}
	json.Unmarshal(body, &healthResp)
	prettyPrint(healthResp)

	// 2. Ingest a coded case
	color.Yellow("\n[2] Ingest Coded Case")
	ingestReq := map[string]interface{}{
		"narrative": "Patient presented with severe chest pain and elevated troponin. Diagnosed with acute myocardial infarction. Twelve lead ECG performed on admission.",
		"assigned_codes": []map[string]string{
			{"code": "410.9", "code_system": "ICD9"},
			{"code": "93000", "code_system": "CPT"},
		},
		"source_intent": "diagnostic",
	}
	resp, body, err = sendRequest("POST", "/corpus/v1", ingestReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var ingestResp map[string]interface{}
	json.Unmarshal(body, &ingestResp)
	prettyPrint(ingestResp)

	// Extract new ID if created
	var caseID string
	if data, ok := ingestResp["data"].(map[string]interface{}); ok {
		if id, ok := data["id"].(string); ok {
			caseID = id
		}
	}

	// 3. List the corpus
	color.Yellow("\n[3] List Corpus")
	resp, body, err = sendRequest("GET", "/corpus/v1", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var listResp map[string]interface{}
	json.Unmarshal(body, &listResp)
	if data, ok := listResp["data"].([]interface{}); ok {
		fmt.Printf("Corpus size: %d\n", len(data))
	} else {
		prettyPrint(listResp)
	}

	// 4. Run the coding workflow against a note near the ingested case
	color.Yellow("\n[4] Code a Clinical Note (retrieval expected)")
	codingReq := map[string]interface{}{
		"clinical_text":   "58 year old male with crushing substernal chest pain, troponin positive, suspected acute MI.",
		"patient_context": map[string]interface{}{"age": 58, "sex": "male"},
	}
	resp, body, err = sendRequest("POST", "/coding/v1", codingReq)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var codingResp map[string]interface{}
		json.Unmarshal(body, &codingResp)
		// Concise printing so a long explanation does not drown the codes
		if data, ok := codingResp["data"].(map[string]interface{}); ok {
			fmt.Printf("ICD-9: %v\n", data["icd9_codes"])
			fmt.Printf("CPT: %v\n", data["cpt_codes"])
			fmt.Printf("Confidence: %v\n", data["confidence_score"])
			fmt.Printf("Used fallback: %v\n", data["used_fallback"])
		} else {
			prettyPrint(codingResp)
		}
	}

	// 5. Run the workflow against a note far from the corpus
	color.Yellow("\n[5] Code an Unrelated Note (fallback expected)")
	codingReq = map[string]interface{}{
		"clinical_text": "Routine removal of a benign skin lesion from the left forearm under local anesthesia.",
	}
	resp, body, err = sendRequest("POST", "/coding/v1", codingReq)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var codingResp map[string]interface{}
		json.Unmarshal(body, &codingResp)
		if data, ok := codingResp["data"].(map[string]interface{}); ok {
			fmt.Printf("ICD-9: %v\n", data["icd9_codes"])
			fmt.Printf("CPT: %v\n", data["cpt_codes"])
			fmt.Printf("Confidence: %v\n", data["confidence_score"])
			fmt.Printf("Used fallback: %v\n", data["used_fallback"])
		} else {
			prettyPrint(codingResp)
		}
	}

	// 6. Cleanup (delete the ingested case)
	if caseID != "" {
		color.Yellow("\n[6] Cleanup: Delete Ingested Case")
		resp, body, err = sendRequest("DELETE", "/corpus/v1/"+caseID, nil)
		if err != nil {
			color.Red("Failed: %v", err)
		} else {
			color.Green("Status: %s", resp.Status)
			var deleteResp map[string]interface{}
			json.Unmarshal(body, &deleteResp)
			prettyPrint(deleteResp)
		}
	} else {
		color.Red("\n[SKIP] Cleanup skipped (no ID returned from ingest)")
	}

	color.Cyan("\n✅ Test Sequence Complete")
}

package assistant

import (
	"strings"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// buildMappingPrompt constructs the column-mapping request for one
// spreadsheet's header row.
func buildMappingPrompt(columns []string) string {
	var b strings.Builder
	b.WriteString("You are a sales report column mapper for small-business spreadsheets.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Match each semantic field to one of the source column names below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"date\": string, the column holding the sale date (required)\n")
	b.WriteString("- \"product\": string, the column holding the product name (required)\n")
	b.WriteString("- \"amount\": string, the column holding the sale total (required)\n")
	b.WriteString("- \"category\": string or null, the column holding the product category\n")
	b.WriteString("- \"quantity\": string or null, the column holding units sold\n\n")

	b.WriteString("Source columns:\n")
	for _, col := range columns {
		b.WriteString("- " + col + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Every value must be copied EXACTLY from the source column list (case-sensitive).\n")
	b.WriteString("2. Use null for \"category\" or \"quantity\" when no column fits.\n")
	b.WriteString("3. Prefer a total/revenue column over a unit-price column for \"amount\".\n")
	b.WriteString("4. Never invent a column name.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// buildCategorizationPrompt constructs the enrichment request for one
// batch of distinct product names.
func buildCategorizationPrompt(names []string) string {
	var b strings.Builder
	b.WriteString("You are a product catalog classifier for a small jewelry business.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Assign every product below a category and a cleaned display name.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object keyed by the EXACT original product name.\n\n")
	b.WriteString("Each value must have these fields:\n")
	b.WriteString("- \"category\": string (one of the predefined categories)\n")
	b.WriteString("- \"cleanedName\": string (tidy Title Case display name)\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range domain.Categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Products:\n")
	for _, name := range names {
		b.WriteString("- " + name + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Category must be EXACTLY one of the category names shown above (case-sensitive).\n")
	b.WriteString("2. If you are unsure, use category \"Other\".\n")
	b.WriteString("3. \"cleanedName\" fixes casing and strips SKU codes but never changes what the product is.\n")
	b.WriteString("4. Every product from the list must appear in the output exactly once.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// buildInsightPrompt constructs the narrative request from a JSON-encoded
// aggregate summary.
func buildInsightPrompt(summaryJSON string) string {
	var b strings.Builder
	b.WriteString("You are a strategic advisor for a small retail business reviewing a sales summary.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the aggregate sales summary below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"drive\": string, one sentence on what is driving revenue\n")
	b.WriteString("- \"win\": string, one sentence on a recent win worth repeating\n")
	b.WriteString("- \"risk\": string, one sentence on the biggest risk\n")
	b.WriteString("- \"action\": string, one sentence recommending a concrete next step\n\n")

	b.WriteString("Sales summary:\n")
	b.WriteString(summaryJSON)
	b.WriteString("\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Keep each sentence under 30 words.\n")
	b.WriteString("2. Ground every statement in the numbers provided. Never invent figures.\n")
	b.WriteString("3. Plain language a shop owner would use, no jargon.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

package llm

import "fmt"

// BuildExtractionPrompt wraps one chunk of report text in the Mistral
// instruct template and asks for minified JSON Lines, one parameter per
// line, so the output can be parsed incrementally as it streams.
func BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(`[INST] You are a medical data extraction assistant.
Extract all health parameters, test results, and vital signs from the following text.
Also extract the "Report Date" or "Collection Date" from the document.

CRITICAL INSTRUCTIONS:
1. EXCLUDE all patient metadata (Name, Age, Sex, ID, Registration No, Patient Episode).
2. EXCLUDE all doctor/hospital metadata (Referred By, KMC No, Hospital Name).
3. EXCLUDE isolated dates that are not the Report Date.
4. ONLY extract actual medical test results.

USE STANDARD NAMES where possible:
- "Total Cholesterol" (not "Cholesterol, Total")
- "LDL Cholesterol" (not "LDL, Direct")
- "HDL Cholesterol"
- "Triglycerides"
- "Fasting Glucose"
- "HbA1c"
- "Hemoglobin"
- "ESR" (not "Erythrocyte Sedimentation Rate")
- "TSH", "T3", "T4"
- "Vitamin D", "Vitamin B12"
- "SGPT/ALT", "SGOT/AST"

Output each parameter as a separate valid JSON object on a new line (JSON Lines format).
IMPORTANT: Return MINIFIED JSON. Do NOT pretty-print. Do NOT use newlines inside the JSON objects.
Do NOT return a JSON array (no [ or ]).
Do NOT use trailing commas between objects.
Each object must have these keys: "test_name", "value", "unit", "reference_range", "report_date".
If a value is missing, use null.
Do not include any explanation, just the JSON objects.

Text:
%s
[/INST]`, text)
}

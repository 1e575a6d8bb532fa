package eval

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultQueries is the standard evaluation set: 20 questions answerable from clinical
// transcripts, 15 the corpus cannot answer, and 5 that mix the two.
var DefaultQueries = []string{
	// medical
	"What technique was used for the laparoscopic cholecystectomy?",
	"Describe the incision made for the carpal tunnel release.",
	"What anesthesia was used for the colonoscopy procedure?",
	"What were the findings of the MRI of the lumbar spine?",
	"How was the patient positioned for the right total knee arthroplasty?",
	"What sutures were used to close the fascia in the hernia repair?",
	"Describe the findings during the cystoscopy.",
	"What complications occurred during the cataract surgery?",
	"What was the estimated blood loss for the lumbar fusion?",
	"What specific medication was injected during the epidural steroid injection?",
	"What are the presenting symptoms for the patient with allergic rhinitis?",
	"Describe the patient's history of chronic obstructive pulmonary disease (COPD).",
	"What symptoms did the patient with acute appendicitis exhibit?",
	"What were the vital signs recorded for the patient with chest pain?",
	"Describe the physical exam findings for the patient with otitis media.",
	"What previous surgeries did the patient with the hip fracture have?",
	"What allergies does the patient with the skin abscess list?",
	"Is there a family history of heart disease mentioned in the consultations?",
	"What neurological symptoms were reported by the patient with the headache?",
	"Describe the social history for the patient evaluated for depression.",

	// non-medical
	"Who invented the stethoscope?",
	"What is the capital of France?",
	"What is the current stock price of Pfizer?",
	"Summarize the plot of the movie 'The Doctor'.",
	"How do I bake a cake?",
	"What is the population of New York City?",
	"Who wrote the novel 'Pride and Prejudice'?",
	"What is the boiling point of water?",
	"How tall is Mount Everest?",
	"What year was the iPhone first released?",
	"What is the currency of Japan?",
	"Who painted the Mona Lisa?",
	"What is the largest planet in our solar system?",
	"How many countries are in the European Union?",
	"What is the square root of 144?",

	// mixed
	"Compare the anesthesia types used in the orthopedic surgeries mentioned.",
	"List common risk factors mentioned for patients with cardiovascular issues.",
	"What represent the most frequent postoperative diagnoses in the dataset?",
	"How do medical procedures differ between emergency and elective surgeries?",
	"What are the economic impacts of chronic diseases on healthcare systems?",
}

// ReadQueries reads one query per line. Blank lines and lines starting with # are skipped.
func ReadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", path)
	}
	return queries, nil
}

package catalog

const clinicalPrompt = `You are a medical assistant supporting licensed clinicians with documentation and clinical questions. Follow these rules:

1. Base answers on current clinical guidelines and peer-reviewed evidence.
2. Use standard medical terminology and structure notes in SOAP format when relevant.
3. Never include identifying patient details beyond what the clinician supplied.
4. Flag uncertainty explicitly and recommend confirmation by a qualified professional.

You support clinical judgment; you do not replace it.`

const visionPrompt = `You are a medical imaging assistant that helps radiologists review X-ray, CT and MRI studies. For every image:

1. Describe the technique and image quality.
2. Report findings, noting any abnormality with its location and size where visible.
3. Offer a short differential when findings are abnormal.

Structure the output as Clinical History, Technique, Findings and Impression. State clearly that a radiologist must confirm the interpretation.`

const codingPrompt = `You are a clinical data assistant specialised in healthcare interoperability and coding. You help with HL7 v2 message parsing, FHIR R4 resource generation, ICD-10 and CPT code assignment, and clinical data transformation.

Only assign codes supported by the documentation provided, emit structurally valid FHIR JSON and HL7 segments, and call out any ambiguity instead of guessing.`

func defaultSystemPrompt(t Task) string {
	switch t {
	case TaskVision:
		return visionPrompt
	case TaskCoding:
		return codingPrompt
	default:
		return clinicalPrompt
	}
}

var builtin = []Descriptor{
	{
		Name:         "llama2-medical",
		DisplayName:  "Llama 2 Medical",
		SizeLabel:    "3.8GB",
		Kind:         KindText,
		Task:         TaskClinical,
		Capabilities: []string{"clinical_notes", "medical_qa", "diagnosis_assistance"},
		Description:  "Llama 2 7B tuned for clinical note drafting and medical question answering",
		BaseModel:    "llama2:7b",
		SystemPrompt: clinicalPrompt,
	},
	{
		Name:         "mistral-medical",
		DisplayName:  "Mistral Medical",
		SizeLabel:    "4.1GB",
		Kind:         KindText,
		Task:         TaskClinical,
		Capabilities: []string{"clinical_documentation", "icd_coding", "drug_interactions"},
		Description:  "Mistral 7B for clinical documentation and drug interaction checks",
		BaseModel:    "mistral:7b",
		SystemPrompt: clinicalPrompt,
	},
	{
		Name:         "llava-medical",
		DisplayName:  "LLaVA Medical Vision",
		SizeLabel:    "4.7GB",
		Kind:         KindMultimodal,
		Task:         TaskVision,
		Capabilities: []string{"medical_imaging", "xray_analysis", "radiology_reports"},
		Description:  "LLaVA 7B for medical image review and structured radiology reports",
		BaseModel:    "llava:7b",
		SystemPrompt: visionPrompt,
	},
	{
		Name:         "codellama-clinical",
		DisplayName:  "Code Llama Clinical",
		SizeLabel:    "3.8GB",
		Kind:         KindText,
		Task:         TaskCoding,
		Capabilities: []string{"hl7_parsing", "fhir_generation", "clinical_coding"},
		Description:  "Code Llama 7B for HL7/FHIR transformation and ICD-10/CPT coding",
		BaseModel:    "codellama:7b",
		SystemPrompt: codingPrompt,
	},
}

// Default returns the built-in healthcare catalog.
func Default() *Catalog {
	c, err := New(builtin...)
	if err != nil {
		panic("catalog: invalid built-in descriptors: " + err.Error())
	}
	return c
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/sonar-hub/internal/identity"
)

const maxContactBody = 32 << 10

// Technology is an informational sonar technology card.
type Technology struct {
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Details     []string `json:"details"`
}

// Resource is an external reading link.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var technologies = []Technology{
	{
		Name:        "Side-Scan Sonar (SSS)",
		Icon:        "🌊",
		Description: "Generates high-resolution images of the seabed or lakebed by emitting fan-shaped acoustic pulses perpendicular to the direction of motion. Excellent for locating objects, mapping seabed texture, and detailed surveys.",
		Details: []string{
			"Operates by emitting acoustic pulses and recording the strength and travel time of the returning echoes.",
			"Creates a 'sonograph' or acoustic image.",
			"Commonly used for wreck detection, pipeline surveys, geological mapping, and search and recovery operations.",
		},
	},
	{
		Name:        "Multi-Beam Echosounder (MBES)",
		Icon:        " M",
		Description: "Emits sound waves in a wide swath, allowing for precise bathymetric mapping (depth measurement) and simultaneous backscatter data collection over a large area.",
		Details: []string{
			"Collects data from multiple beams simultaneously, creating detailed 3D maps of the seafloor.",
			"Provides both depth (bathymetry) and acoustic reflectivity (backscatter) data.",
			"Used for hydrographic surveys, nautical charting, habitat mapping, and offshore construction.",
		},
	},
	{
		Name:        "Ground Penetrating Radar (GPR)",
		Icon:        "🌍",
		Description: "A geophysical method that uses radar pulses to image the subsurface. It detects reflected signals from subsurface structures, changes in material, or buried objects.",
		Details: []string{
			"Transmits high-frequency radio waves into the ground and records the reflected signals.",
			"Effective for detecting utilities, voids, rebar, archaeological features, and geological strata.",
			"Non-destructive and can be used on various materials like soil, rock, concrete, and ice.",
		},
	},
	{
		Name:        "Ultrasonic Sensors (Air/Short-Range Water)",
		Icon:        "🔊",
		Description: "Utilize high-frequency sound waves (ultrasound) to measure distances, detect objects, or map environments, typically in air or for short-range underwater applications.",
		Details: []string{
			"Emit ultrasonic pulses and measure the time taken for echoes to return.",
			"Common in robotics for navigation and obstacle avoidance, parking sensors, level measurement, and non-destructive testing.",
			"Range and resolution depend on frequency and medium.",
		},
	},
	{
		Name:        "AI in Sonar Classification",
		Icon:        "🤖",
		Description: "Modern sonar systems increasingly leverage Artificial Intelligence (AI) and Machine Learning (ML) for automated target recognition (ATR) and classification from sonar imagery (e.g., spectrograms, side-scan images). Large language models can assist in interpreting reports and data.",
		Details: []string{
			"Deep Learning models, particularly Convolutional Neural Networks (CNNs), have shown significant promise in classifying objects based on their acoustic signatures from images.",
			"Large Language Models (LLMs) like those accessible via Perplexity AI can be used to summarize sonar data reports, answer questions about sonar principles, and assist in drafting analyses of sonar findings when provided with textual data or descriptions.",
			"Techniques are often inspired by computer vision, adapted for the unique characteristics of sonar data (e.g., noise, artifacts, specific textures).",
			"Research, such as 'Deep convolutional neural networks for sonar image classification' (Nature s41598-019-40765-6), demonstrates the application of CNNs for tasks like distinguishing between different types of seabed features or man-made objects from imagery.",
			"Challenges include dataset availability for training visual models, variability in sonar data due to environmental conditions, and the need for robust models. LLMs rely on the quality and detail of the input text or data provided to them.",
		},
	},
}

var resources = []Resource{
	{Title: "Deep CNNs for sonar image classification (Nature)", URL: "https://www.nature.com/articles/s41598-019-40765-6"},
	{Title: "Ocean Exploration Trust: Sonar", URL: "https://nautiluslive.org/tech/sonar"},
	{Title: "USGS: Sonar and seafloor mapping", URL: "https://www.usgs.gov/node/277760"},
	{Title: "Perplexity API documentation", URL: "https://docs.perplexity.ai/home"},
}

// ContactRequest is the body of POST /api/contact.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ListTechnologies returns the sonar technology cards and reading links.
func (h *Handler) ListTechnologies(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"technologies": technologies,
		"resources":    resources,
	})
}

// SubmitContact validates a contact form and acknowledges it. Messages are
// logged, not delivered.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContactBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Email == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "Please fill in all fields.")
		return
	}
	if !strings.Contains(req.Email, "@") {
		Error(w, http.StatusBadRequest, "invalid email address")
		return
	}

	slog.Info("Contact form received",
		"user_id", identity.UserIDFromContext(r.Context()),
		"ip", identity.IPFromRequest(r),
		"subject", req.Subject,
		"message_len", len(req.Message),
	)

	JSON(w, http.StatusOK, map[string]string{
		"message": "Thank you, " + req.Name + "! Your message '" + req.Subject + "' has been 'received'.",
	})
}

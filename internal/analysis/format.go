package analysis

import (
	"fmt"
	"strings"
)

// FormatTechnique renders a technique review as a WhatsApp message.
func FormatTechnique(r *TechniqueReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Análisis de técnica: %s*\n", r.Exercise)
	if r.Score > 0 {
		fmt.Fprintf(&b, "Puntuación: %d/10\n", r.Score)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Summary)
	}
	writeList(&b, "Lo que haces bien", r.Strengths)
	writeList(&b, "A corregir", r.Issues)
	writeList(&b, "Claves", r.Cues)
	return strings.TrimSpace(b.String())
}

// FormatBodyScan renders a body-composition estimate.
func FormatBodyScan(r *BodyScanResult) string {
	var b strings.Builder
	b.WriteString("*Análisis corporal*\n")
	if r.BodyFatPct > 0 {
		fmt.Fprintf(&b, "Grasa corporal estimada: %.1f%%\n", r.BodyFatPct)
	}
	if r.MuscleMass != "" {
		fmt.Fprintf(&b, "Masa muscular: %s\n", r.MuscleMass)
	}
	if r.Posture != "" {
		fmt.Fprintf(&b, "Postura: %s\n", r.Posture)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Summary)
	}
	writeList(&b, "Recomendaciones", r.Recommendations)
	return strings.TrimSpace(b.String())
}

// FormatNutrition renders a nutrition plan.
func FormatNutrition(p *NutritionPlan) string {
	var b strings.Builder
	b.WriteString("*Plan de nutrición*\n")
	fmt.Fprintf(&b, "Calorías: %d kcal\nProteína: %d g · Carbohidratos: %d g · Grasas: %d g\n",
		p.Calories, p.ProteinG, p.CarbsG, p.FatG)
	if len(p.Meals) > 0 {
		b.WriteString("\n*Comidas*\n")
		for _, m := range p.Meals {
			fmt.Fprintf(&b, "• %s: %s\n", m.Name, m.Description)
		}
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Notes)
	}
	return strings.TrimSpace(b.String())
}

// FormatPrediction renders a progress prediction.
func FormatPrediction(p *ProgressPrediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Predicción de progreso (%d semanas)*\n", p.HorizonWeeks)
	if p.ExpectedWeightKg > 0 {
		fmt.Fprintf(&b, "Peso esperado: %.1f kg\n", p.ExpectedWeightKg)
	}
	if p.ExpectedBodyFatPct > 0 {
		fmt.Fprintf(&b, "Grasa corporal esperada: %.1f%%\n", p.ExpectedBodyFatPct)
	}
	if p.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Summary)
	}
	writeList(&b, "Hitos", p.Milestones)
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s*\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "• %s\n", item)
	}
}

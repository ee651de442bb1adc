package exercise

// canonical lists every known exercise key with its display name and the
// English/Spanish aliases that resolve to it. Aliases are written in cleaned
// form: lowercase, no accents, single spaces.
var canonical = []struct {
	Key     string
	Display string
	Aliases []string
}{
	{"bench_press", "Bench Press", []string{"bench press", "bench", "flat bench", "flat bench press", "barbell bench press", "press banca", "press de banca", "press de pecho", "press plano", "banca"}},
	{"incline_bench_press", "Incline Bench Press", []string{"incline bench press", "incline bench", "incline press", "press inclinado", "press de banca inclinado", "press banca inclinado"}},
	{"dumbbell_bench_press", "Dumbbell Bench Press", []string{"dumbbell bench press", "db bench press", "dumbbell press", "press con mancuernas", "press de banca con mancuernas"}},
	{"squat", "Squat", []string{"squat", "squats", "back squat", "back squats", "barbell squat", "sentadilla", "sentadillas", "sentadilla trasera", "sentadilla con barra"}},
	{"front_squat", "Front Squat", []string{"front squat", "front squats", "sentadilla frontal", "sentadillas frontales"}},
	{"bulgarian_split_squat", "Bulgarian Split Squat", []string{"bulgarian split squat", "split squat", "sentadilla bulgara", "sentadillas bulgaras"}},
	{"deadlift", "Deadlift", []string{"deadlift", "deadlifts", "conventional deadlift", "peso muerto", "peso muerto convencional"}},
	{"romanian_deadlift", "Romanian Deadlift", []string{"romanian deadlift", "rdl", "peso muerto rumano"}},
	{"sumo_deadlift", "Sumo Deadlift", []string{"sumo deadlift", "peso muerto sumo"}},
	{"overhead_press", "Overhead Press", []string{"overhead press", "ohp", "military press", "shoulder press", "press militar", "press de hombros", "press de hombro"}},
	{"barbell_row", "Barbell Row", []string{"barbell row", "bent over row", "bent over barbell row", "row", "remo", "remo con barra"}},
	{"dumbbell_row", "Dumbbell Row", []string{"dumbbell row", "one arm row", "remo con mancuerna", "remo con mancuernas"}},
	{"pull_up", "Pull Up", []string{"pull up", "pull ups", "pullup", "pullups", "dominada", "dominadas"}},
	{"chin_up", "Chin Up", []string{"chin up", "chin ups", "chinup", "chinups", "dominada supina", "dominadas supinas"}},
	{"lat_pulldown", "Lat Pulldown", []string{"lat pulldown", "pulldown", "jalon", "jalon al pecho", "jalon dorsal"}},
	{"dip", "Dip", []string{"dip", "dips", "fondos", "fondos en paralelas"}},
	{"push_up", "Push Up", []string{"push up", "push ups", "pushup", "pushups", "flexiones", "lagartijas"}},
	{"hip_thrust", "Hip Thrust", []string{"hip thrust", "hip thrusts", "empuje de cadera", "puente de gluteos", "puente de gluteo"}},
	{"leg_press", "Leg Press", []string{"leg press", "prensa", "prensa de piernas", "prensa de pierna"}},
	{"lunge", "Lunge", []string{"lunge", "lunges", "zancada", "zancadas", "estocadas"}},
	{"leg_curl", "Leg Curl", []string{"leg curl", "hamstring curl", "curl femoral", "curl de isquiotibiales"}},
	{"leg_extension", "Leg Extension", []string{"leg extension", "leg extensions", "extension de cuadriceps", "extensiones de cuadriceps", "extension de piernas"}},
	{"calf_raise", "Calf Raise", []string{"calf raise", "calf raises", "elevacion de talones", "elevaciones de talones", "pantorrillas", "gemelos"}},
	{"bicep_curl", "Bicep Curl", []string{"bicep curl", "biceps curl", "bicep curls", "curl", "curl de biceps", "curl con barra"}},
	{"hammer_curl", "Hammer Curl", []string{"hammer curl", "hammer curls", "curl martillo"}},
	{"tricep_extension", "Tricep Extension", []string{"tricep extension", "triceps extension", "skull crusher", "skull crushers", "extension de triceps", "press frances"}},
	{"tricep_pushdown", "Tricep Pushdown", []string{"tricep pushdown", "triceps pushdown", "pushdown", "jalon de triceps", "extension de triceps en polea"}},
	{"lateral_raise", "Lateral Raise", []string{"lateral raise", "lateral raises", "side raise", "elevacion lateral", "elevaciones laterales"}},
	{"face_pull", "Face Pull", []string{"face pull", "face pulls", "jalon a la cara"}},
	{"power_clean", "Power Clean", []string{"power clean", "clean", "cargada", "cargada de potencia"}},
	{"snatch", "Snatch", []string{"snatch", "power snatch", "arrancada", "arranque"}},
	{"plank", "Plank", []string{"plank", "planks", "plancha", "plancha abdominal"}},
}

var (
	aliasToKey   = map[string]string{}
	keyToDisplay = map[string]string{}
)

func init() {
	for _, c := range canonical {
		keyToDisplay[c.Key] = c.Display
		for _, a := range c.Aliases {
			aliasToKey[a] = c.Key
		}
	}
}

package env

import (
	"log"
	"strconv"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

type EnvStruct struct {
	HOME           string `zog:"HOME"`
	XDG_HOME       string `zog:"XDG_HOME"`
	PORT           int    `zog:"DOCPIPE_ENV_PORT"`
	KNOWLEDGE_URL  string `zog:"DOCPIPE_KNOWLEDGE_URL"`
	GENERATION_URL string `zog:"DOCPIPE_GENERATION_URL"`
	LISTEN_ADDR    string
	LISTEN_PROT    string
	BASE_URL       string
}

var env *EnvStruct

var EnvSchema = z.Struct(z.Shape{
	"HOME":           z.String(),
	"XDG_HOME":       z.String(),
	"PORT":           z.Int().Default(58230),
	"KNOWLEDGE_URL":  z.String().Optional(),
	"GENERATION_URL": z.String().Optional(),
})

func Get() *EnvStruct {
	if env == nil {
		env = &EnvStruct{}
		errs := EnvSchema.Parse(zenv.NewDataProvider(), env)
		if errs != nil {
			log.Fatal("[docpipe] Failed to parse environment variables", errs)
		}

		env.LISTEN_PROT = "http://"
		env.LISTEN_ADDR = "localhost:" + strconv.Itoa(env.PORT)
		env.BASE_URL = env.LISTEN_PROT + env.LISTEN_ADDR
	}
	return env
}

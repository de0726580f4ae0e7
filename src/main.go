package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strm/src/boot"
	"strm/src/lib"
	"strm/src/middlewares"
	"strm/src/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
)

const (
	apiPrefix string = "/api/v1"
)

var verifyActionValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	action, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch types.VerificationAction(action) {
	case types.ACTION_LIST, types.ACTION_PURCHASE, types.ACTION_GATE:
		return true
	}
	return false
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("verifyaction", verifyActionValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/readyz", func(ctx *gin.Context) {
		if err := lib.PingRedis(ctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "not ready"})
			return
		}
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func main() {
	boot.InitDb()
	boot.InitScheduler()
	defer boot.StopScheduler()

	if os.Getenv("KAFKA_BROKER") != "" {
		go lib.KafkaCreateTopics("tickets-transferred")
	}

	router := setupRouter()

	apiEnv := os.Getenv("API_ENV")
	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "Idempotency-Key")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	registerValidators()

	router = maintenanceModeMiddleware(router)

	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware)
	{
		verificationHandlers(authorized)
		ticketHandlers(authorized)
	}

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}

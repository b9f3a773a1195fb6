// Package config загружает конфигурацию scheduler'а через viper.
//
// Порядок (каждый следующий перекрывает предыдущий):
//   - значения по умолчанию
//   - YAML файл (аргумент Load или MIRRORSYNC_CONFIG)
//   - переменные окружения MIRRORSYNC_<SECTION>_<KEY>, например
//     MIRRORSYNC_SCHEDULER_MAX_CAPACITY=200
//
// DB_URL, RABBITMQ_URL, NATS_URL, LOG_LEVEL, LOG_FORMAT и SCHED_PORT
// читаются, если MIRRORSYNC_* аналог не задан.
package config

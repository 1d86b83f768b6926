package knowledge

import "github.com/yungbote/helpdesk-backend/internal/types"

// The knowledge base is a fixed, ordered forest: Category > Subcategory >
// Article. Slice order is significant: ties during search are broken by
// definition order, so the same query always yields the same ranking.

type Article struct {
	Question       string               `json:"question"`
	QuestionKZ     string               `json:"question_kz,omitempty"`
	Answer         string               `json:"answer"`
	AnswerKZ       string               `json:"answer_kz,omitempty"`
	CanAutoResolve bool                 `json:"can_auto_resolve"`
	Priority       types.TicketPriority `json:"priority"`
}

type Subcategory struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Keywords []string  `json:"keywords"`
	Articles []Article `json:"articles"`
}

type Category struct {
	Key           string        `json:"key"`
	Name          string        `json:"name"`
	NameKZ        string        `json:"name_kz,omitempty"`
	Keywords      []string      `json:"keywords"`
	Subcategories []Subcategory `json:"subcategories"`
}

// DefaultBase returns the built-in corporate support taxonomy.
func DefaultBase() []Category {
	return []Category{
		{
			Key:      "it_support",
			Name:     "IT Поддержка",
			NameKZ:   "IT Қолдау",
			Keywords: []string{"компьютер", "пароль", "принтер", "интернет", "программа", "почта", "vpn", "сеть", "ноутбук", "монитор"},
			Subcategories: []Subcategory{
				{
					Key:      "passwords",
					Name:     "Пароли и доступ",
					Keywords: []string{"пароль", "логин", "вход", "доступ", "заблокирован", "сброс", "забыл"},
					Articles: []Article{
						{
							Question:   "Как сбросить пароль?",
							QuestionKZ: "Құпия сөзді қалай қалпына келтіруге болады?",
							Answer: "Для сброса пароля выполните следующие шаги:\n\n" +
								"1. Перейдите на страницу входа в систему\n" +
								"2. Нажмите на ссылку \"Забыли пароль?\"\n" +
								"3. Введите ваш корпоративный email\n" +
								"4. Проверьте почту - вам придёт письмо со ссылкой для сброса\n" +
								"5. Перейдите по ссылке и установите новый пароль\n\n" +
								"Требования к паролю: минимум 8 символов, хотя бы одна заглавная буква, цифра и специальный символ.\n\n" +
								"Если письмо не пришло, проверьте папку \"Спам\" или обратитесь в IT-поддержку.",
							AnswerKZ:       "Құпия сөзді қалпына келтіру үшін кіру бетіне өтіп, 'Құпия сөзді ұмыттыңыз ба?' түймесін басыңыз.",
							CanAutoResolve: true,
							Priority:       types.TicketPriorityLow,
						},
						{
							Question: "Аккаунт заблокирован",
							Answer: "Ваш аккаунт может быть заблокирован по следующим причинам:\n\n" +
								"1. 3 неудачные попытки входа - подождите 15 минут\n" +
								"2. Подозрительная активность - обратитесь в IT-безопасность\n" +
								"3. Истёк срок действия пароля - сбросьте пароль\n\n" +
								"Для немедленной разблокировки позвоните на внутренний номер 1234 или напишите на security@company.kz.\n" +
								"Время разблокировки: обычно 5-10 минут.",
							CanAutoResolve: false,
							Priority:       types.TicketPriorityHigh,
						},
					},
				},
				{
					Key:      "vpn",
					Name:     "VPN и удалённый доступ",
					Keywords: []string{"vpn", "удаленный", "дом", "подключение", "remote"},
					Articles: []Article{
						{
							Question: "Как подключиться к VPN?",
							Answer: "Инструкция по подключению к корпоративному VPN:\n\n" +
								"Установка:\n" +
								"1. Скачайте VPN-клиент с портала: https://portal.company.kz/vpn\n" +
								"2. Установите приложение\n" +
								"3. Запросите сертификат у руководителя\n\n" +
								"Подключение:\n" +
								"1. Откройте VPN-клиент\n" +
								"2. Выберите сервер: vpn.company.kz\n" +
								"3. Введите логин (email) и пароль\n" +
								"4. Нажмите \"Подключиться\"\n\n" +
								"Решение проблем: не подключается - проверьте интернет; ошибка сертификата - обновите сертификат; медленная скорость - выберите другой сервер.",
							CanAutoResolve: true,
							Priority:       types.TicketPriorityMedium,
						},
					},
				},
				{
					Key:      "hardware",
					Name:     "Оборудование",
					Keywords: []string{"принтер", "монитор", "клавиатура", "мышь", "компьютер", "ноутбук", "не работает"},
					Articles: []Article{
						{
							Question: "Принтер не печатает",
							Answer: "Проверьте следующее:\n\n" +
								"1. Питание - принтер включен?\n" +
								"2. Бумага - есть ли бумага в лотке?\n" +
								"3. Подключение - горит ли индикатор сети?\n" +
								"4. Очередь печати - нет ли зависших заданий?\n\n" +
								"Если не помогло, перезагрузите принтер: выключите, подождите 30 секунд, включите снова.\n" +
								"Создайте тикет с фото индикаторов принтера, если проблема не решена.",
							CanAutoResolve: false,
							Priority:       types.TicketPriorityMedium,
						},
					},
				},
			},
		},
		{
			Key:      "hr",
			Name:     "HR / Кадры",
			NameKZ:   "HR / Кадрлар",
			Keywords: []string{"отпуск", "зарплата", "увольнение", "прием", "больничный", "справка", "договор", "отгул"},
			Subcategories: []Subcategory{
				{
					Key:      "vacation",
					Name:     "Отпуска и отгулы",
					Keywords: []string{"отпуск", "отгул", "выходной", "дни"},
					Articles: []Article{
						{
							Question: "Как оформить отпуск?",
							Answer: "Оформление отпуска через HR-портал:\n\n" +
								"1. Войдите в HR-портал: https://hr.company.kz\n" +
								"2. Раздел \"Отпуска\" -> \"Новое заявление\"\n" +
								"3. Выберите тип отпуска (ежегодный оплачиваемый, без сохранения зарплаты, учебный)\n" +
								"4. Укажите даты начала и окончания\n" +
								"5. Добавьте согласование руководителя\n" +
								"6. Отправьте заявление\n\n" +
								"Важно: подавайте заявление минимум за 14 дней; отпуск за свой счёт - за 3 дня.",
							CanAutoResolve: true,
							Priority:       types.TicketPriorityLow,
						},
					},
				},
				{
					Key:      "salary",
					Name:     "Зарплата и выплаты",
					Keywords: []string{"зарплата", "деньги", "выплата", "аванс", "премия"},
					Articles: []Article{
						{
							Question: "Когда выплачивается зарплата?",
							Answer: "График выплат:\n\n" +
								"Аванс: 15 числа каждого месяца.\n" +
								"Основная часть: последний рабочий день месяца.\n\n" +
								"Если день выплаты выпадает на выходной - выплата производится в предшествующий рабочий день.\n" +
								"Расчётный листок доступен в HR-портале через 1-2 дня после выплаты.\n" +
								"По вопросам расхождений обращайтесь в бухгалтерию: payroll@company.kz",
							CanAutoResolve: true,
							Priority:       types.TicketPriorityLow,
						},
					},
				},
			},
		},
		{
			Key:      "finance",
			Name:     "Финансы",
			NameKZ:   "Қаржы",
			Keywords: []string{"счёт", "оплата", "возврат", "бюджет", "invoice", "расход"},
			Subcategories: []Subcategory{
				{
					Key:      "payments",
					Name:     "Платежи и счета",
					Keywords: []string{"счёт", "оплата", "платёж", "invoice"},
					Articles: []Article{
						{
							Question: "Как согласовать оплату счёта?",
							Answer: "Процесс согласования оплаты:\n\n" +
								"1. Загрузите счёт в систему: https://finance.company.kz\n" +
								"2. Заполните форму: контрагент, сумма, назначение платежа, центр затрат\n" +
								"3. Приложите договор (если есть)\n" +
								"4. Отправьте на согласование\n\n" +
								"Сроки: до 100 000 - 1 рабочий день; до 1 000 000 - 3 рабочих дня; свыше - до 5 рабочих дней.",
							CanAutoResolve: false,
							Priority:       types.TicketPriorityMedium,
						},
					},
				},
			},
		},
		{
			Key:      "admin",
			Name:     "АХО",
			NameKZ:   "Әкімшілік-шаруашылық бөлімі",
			Keywords: []string{"пропуск", "ключ", "офис", "мебель", "уборка", "канцелярия", "переезд"},
			Subcategories: []Subcategory{
				{
					Key:      "access",
					Name:     "Пропуска и доступ",
					Keywords: []string{"пропуск", "ключ", "карта", "дверь"},
					Articles: []Article{
						{
							Question: "Как получить пропуск?",
							Answer: "Оформление пропуска:\n\n" +
								"Для нового сотрудника: HR оформляет заявку автоматически, пропуск готов в первый рабочий день, получите на ресепшн с паспортом.\n\n" +
								"Замена пропуска: заявка через портал АХО с указанием причины, срок изготовления 1-2 дня, стоимость замены 5000.\n\n" +
								"Временный пропуск выдаётся на ресепшн при предъявлении документа.",
							CanAutoResolve: true,
							Priority:       types.TicketPriorityLow,
						},
					},
				},
			},
		},
	}
}
